package policy

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

// failingRepository fails every Save after being armed.
type failingRepository struct {
	*MemoryRepository
	loadErr error
	saveErr error
}

func (f *failingRepository) Load(ctx context.Context) (Tables, error) {
	if f.loadErr != nil {
		return Tables{}, f.loadErr
	}
	return f.MemoryRepository.Load(ctx)
}

func (f *failingRepository) Save(ctx context.Context, t Tables) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.MemoryRepository.Save(ctx, t)
}

func TestParsePattern(t *testing.T) {
	tests := []struct {
		pattern string
		want    []Policy
	}{
		{"1*0", []Policy{ForceOn, UseLastObserved, ForceOff}},
		{"", []Policy{}},
		{"1x0", []Policy{ForceOn, Unset, ForceOff}},
		{"**", []Policy{UseLastObserved, UseLastObserved}},
		{"0 1", []Policy{ForceOff, Unset, ForceOn}},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			if got := ParsePattern(tt.pattern); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParsePattern(%q) = %v, want %v", tt.pattern, got, tt.want)
			}
		})
	}
}

func TestPolicy_StringRoundTrip(t *testing.T) {
	for _, p := range []Policy{ForceOn, ForceOff, UseLastObserved} {
		if got := parsePolicyName(p.String()); got != p {
			t.Errorf("parsePolicyName(%q) = %v, want %v", p.String(), got, p)
		}
	}
	if got := parsePolicyName("garbage"); got != Unset {
		t.Errorf("parsePolicyName(garbage) = %v, want Unset", got)
	}
}

func TestStore_GetInitialState(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		pattern   string
		last      *bool
		wantState bool
		wantOK    bool
	}{
		{name: "force on beats last off", pattern: "1", last: ptr(false), wantState: true, wantOK: true},
		{name: "force off beats last on", pattern: "0", last: ptr(true), wantState: false, wantOK: true},
		{name: "use last observed", pattern: "*", last: ptr(true), wantState: true, wantOK: true},
		{name: "unset falls back to last", pattern: "", last: ptr(true), wantState: true, wantOK: true},
		{name: "malformed falls back to last", pattern: "x", last: ptr(false), wantState: false, wantOK: true},
		{name: "nothing known", pattern: "*", last: nil, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(NewMemoryRepository())
			if tt.last != nil {
				if err := s.RecordOutputState(ctx, "D", 0, *tt.last); err != nil {
					t.Fatalf("RecordOutputState() error = %v", err)
				}
			}
			if _, err := s.SetDefaults(ctx, "D", tt.pattern); err != nil {
				t.Fatalf("SetDefaults() error = %v", err)
			}

			state, ok := s.GetInitialState("D", 0)
			if ok != tt.wantOK || (ok && state != tt.wantState) {
				t.Errorf("GetInitialState() = (%v, %v), want (%v, %v)", state, ok, tt.wantState, tt.wantOK)
			}
		})
	}
}

func TestStore_RecordOutputState_SkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	s := NewStore(repo)

	if err := s.RecordOutputState(ctx, "D", 1, true); err != nil {
		t.Fatalf("RecordOutputState() error = %v", err)
	}
	if err := s.RecordOutputState(ctx, "D", 1, true); err != nil {
		t.Fatalf("RecordOutputState() error = %v", err)
	}
	if repo.Saves() != 1 {
		t.Errorf("saves = %d, want 1", repo.Saves())
	}

	if err := s.RecordOutputState(ctx, "D", 1, false); err != nil {
		t.Fatalf("RecordOutputState() error = %v", err)
	}
	if repo.Saves() != 2 {
		t.Errorf("saves = %d, want 2", repo.Saves())
	}
}

func TestStore_SetDefaults_ClearsPrevious(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryRepository())

	if _, err := s.SetDefaults(ctx, "D", "1111"); err != nil {
		t.Fatalf("SetDefaults() error = %v", err)
	}
	if _, err := s.SetDefaults(ctx, "D", "0"); err != nil {
		t.Fatalf("SetDefaults() error = %v", err)
	}

	want := map[int]Policy{0: ForceOff}
	if got := s.Defaults("D"); !reflect.DeepEqual(got, want) {
		t.Errorf("Defaults(D) = %v, want %v", got, want)
	}
	if got := s.Policy("D", 3); got != Unset {
		t.Errorf("Policy(D, 3) = %v, want Unset", got)
	}
}

func TestStore_DevicesAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryRepository())

	if err := s.RecordOutputState(ctx, "A", 1, true); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordOutputState(ctx, "B", 1, false); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SetDefaults(ctx, "B", "01"); err != nil {
		t.Fatal(err)
	}

	if v, _ := s.LastObserved("A", 1); !v {
		t.Error("LastObserved(A, 1) = false, want true")
	}
	if v, _ := s.LastObserved("B", 1); v {
		t.Error("LastObserved(B, 1) = true, want false")
	}
	if got := s.Defaults("A"); len(got) != 0 {
		t.Errorf("Defaults(A) = %v, want empty", got)
	}
}

func TestStore_PersistenceFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	repo := &failingRepository{MemoryRepository: NewMemoryRepository(), saveErr: boom}
	s := NewStore(repo)

	err := s.RecordOutputState(ctx, "D", 0, true)
	if !errors.Is(err, ErrPersistence) || !errors.Is(err, boom) {
		t.Fatalf("RecordOutputState() error = %v, want ErrPersistence wrapping %v", err, boom)
	}
	if v, ok := s.LastObserved("D", 0); !ok || !v {
		t.Errorf("LastObserved(D, 0) = (%v, %v), want (true, true)", v, ok)
	}

	policies, err := s.SetDefaults(ctx, "D", "0")
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("SetDefaults() error = %v, want ErrPersistence", err)
	}
	if len(policies) != 1 || policies[0] != ForceOff {
		t.Errorf("SetDefaults() policies = %v, want [ForceOff]", policies)
	}
	if state, ok := s.GetInitialState("D", 0); !ok || state {
		t.Errorf("GetInitialState(D, 0) = (%v, %v), want (false, true)", state, ok)
	}
}

func TestStore_LoadFailure(t *testing.T) {
	repo := &failingRepository{MemoryRepository: NewMemoryRepository(), loadErr: errors.New("corrupt")}
	s := NewStore(repo)

	if err := s.Load(context.Background()); !errors.Is(err, ErrPersistence) {
		t.Fatalf("Load() error = %v, want ErrPersistence", err)
	}
	if _, ok := s.GetInitialState("D", 0); ok {
		t.Error("GetInitialState after failed load should know nothing")
	}
}

func TestStore_LoadRestoresTables(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	first := NewStore(repo)
	if err := first.RecordOutputState(ctx, "D", 0, false); err != nil {
		t.Fatal(err)
	}
	if _, err := first.SetDefaults(ctx, "D", "*1"); err != nil {
		t.Fatal(err)
	}

	second := NewStore(repo)
	if err := second.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(second.Snapshot(), first.Snapshot()) {
		t.Errorf("reloaded tables = %+v, want %+v", second.Snapshot(), first.Snapshot())
	}
}

func ptr(b bool) *bool { return &b }
