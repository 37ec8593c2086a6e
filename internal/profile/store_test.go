package profile

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestNewStore_DefaultDir(t *testing.T) {
	s := NewStore("")
	if s.dir == "" {
		t.Fatal("expected non-empty default dir")
	}
	if filepath.Base(s.dir) != appDirName {
		t.Errorf("expected dir to end with %q, got %q", appDirName, s.dir)
	}
}

func TestNewStore_RespectsXDGStateHome(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/tmp/xdg-state")
	s := NewStore("")
	if want := "/tmp/xdg-state/mathquest"; s.dir != want {
		t.Errorf("dir = %q, want %q", s.dir, want)
	}
}

func TestStore_Path(t *testing.T) {
	s := NewStore("/tmp/test-dir")
	want := "/tmp/test-dir/players/abc.json"
	if got := s.Path("abc"); got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
}

func TestStore_LoadMissing(t *testing.T) {
	s := NewStore(t.TempDir())

	_, err := s.Load("nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestStore_RejectsInvalidIDs(t *testing.T) {
	s := NewStore(t.TempDir())

	for _, id := range []string{"", "../escape", "a/b", "has space"} {
		if _, err := s.Load(id); !errors.Is(err, ErrInvalidID) {
			t.Errorf("Load(%q) error = %v, want ErrInvalidID", id, err)
		}
		if err := s.Save(&Profile{ID: id}); !errors.Is(err, ErrInvalidID) {
			t.Errorf("Save(%q) error = %v, want ErrInvalidID", id, err)
		}
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	s := NewStore(t.TempDir())
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	p := New("player-1", "meadow", now)
	p.ApplyXP(250)
	p.Currency = 75
	p.MarkMastered("add_10")
	p.UnlockBiome("beach")
	p.AddSkin("fox")
	p.ShopBiasUntil = now.Add(72 * time.Hour)
	p.ShopBiasBiome = "beach"
	p.Skills["add_10"] = &SkillStat{
		Attempts:      22,
		Correct:       21,
		LatencySumMs:  44000,
		Recent:        []float64{1800, 2100, 1950},
		SmoothedAvgMs: 1950,
	}
	p.Achievements.Unlocked["first_steps"] = Unlock{At: now}
	p.Achievements.Unlocked["sharp_mind"] = Unlock{At: now, Tier: TierSilver}
	p.Achievements.Counters["best_streak"] = 12

	if err := s.Save(p); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := s.Load("player-1")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if loaded.Version != profileVersion {
		t.Errorf("Version = %d, want %d", loaded.Version, profileVersion)
	}
	if loaded.TotalXP != 250 || loaded.Level != 3 {
		t.Errorf("TotalXP/Level = %d/%d, want 250/3", loaded.TotalXP, loaded.Level)
	}
	if loaded.Currency != 75 {
		t.Errorf("Currency = %d, want 75", loaded.Currency)
	}
	if !slices.Equal(loaded.Mastered, []string{"add_10"}) {
		t.Errorf("Mastered = %v", loaded.Mastered)
	}
	if !slices.Equal(loaded.UnlockedBiomes, []string{"meadow", "beach"}) {
		t.Errorf("UnlockedBiomes = %v, want insertion order preserved", loaded.UnlockedBiomes)
	}
	if !loaded.ShopBiasUntil.Equal(p.ShopBiasUntil) || loaded.ShopBiasBiome != "beach" {
		t.Errorf("shop bias = %v/%q", loaded.ShopBiasUntil, loaded.ShopBiasBiome)
	}

	st := loaded.Skills["add_10"]
	if st == nil {
		t.Fatal("add_10 stat missing after load")
	}
	if !slices.Equal(st.Recent, []float64{1800, 2100, 1950}) {
		t.Errorf("Recent = %v, latency window not preserved", st.Recent)
	}
	if st.SmoothedAvgMs != 1950 || st.Attempts != 22 || st.Correct != 21 {
		t.Errorf("stat = %+v", st)
	}

	if got := loaded.Achievements.Unlocked["sharp_mind"]; got.Tier != TierSilver || !got.At.Equal(now) {
		t.Errorf("sharp_mind unlock = %+v", got)
	}
	if loaded.Achievements.Counters["best_streak"] != 12 {
		t.Errorf("best_streak = %d, want 12", loaded.Achievements.Counters["best_streak"])
	}
}

func TestStore_LoadInitializesMaps(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	if err := os.MkdirAll(filepath.Join(dir, playersDirName), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.Path("bare"), []byte(`{"totalXp": 100}`), 0o600); err != nil {
		t.Fatal(err)
	}

	p, err := s.Load("bare")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if p.ID != "bare" {
		t.Errorf("ID = %q, want bare", p.ID)
	}
	if p.Skills == nil || p.Achievements.Unlocked == nil || p.Achievements.Counters == nil {
		t.Error("maps should be initialized after load")
	}
	if p.Level != 2 {
		t.Errorf("Level = %d, want 2 recomputed from totalXp", p.Level)
	}
}

func TestStore_LoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	if err := os.MkdirAll(filepath.Join(dir, playersDirName), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.Path("bad"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load("bad"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestStore_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	if err := s.Save(New("p1", "", time.Now())); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(filepath.Join(dir, playersDirName))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "p1.json" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("dir entries = %v, want only p1.json", names)
	}
}

func TestStore_List(t *testing.T) {
	s := NewStore(t.TempDir())

	ids, err := s.List()
	if err != nil || len(ids) != 0 {
		t.Fatalf("List() on empty store = %v, %v", ids, err)
	}

	for _, id := range []string{"a", "b"} {
		if err := s.Save(New(id, "", time.Now())); err != nil {
			t.Fatal(err)
		}
	}
	ids, err = s.List()
	if err != nil {
		t.Fatal(err)
	}
	slices.Sort(ids)
	if !slices.Equal(ids, []string{"a", "b"}) {
		t.Errorf("List() = %v, want [a b]", ids)
	}
}
