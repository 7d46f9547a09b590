package glossary

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/deusflow/explainee/internal/entities"
)

func TestIsTrivial(t *testing.T) {
	tests := []struct {
		term string
		want bool
	}{
		{"7", true},
		{"2024", true},
		{"21st", true},
		{"Monday", true},
		{"DECEMBER", true},
		{"US", true},
		{"uk", true},
		{"President", true},
		{"Document", true},
		{"Al", true},
		{"x", true},
		{"", true},
		{"EU", false},
		{"UN", false},
		{"Angela Merkel", false},
		{"NATO", false},
		{"3M Company", false},
		{"Maybe", false},
	}
	for _, tt := range tests {
		if got := IsTrivial(tt.term); got != tt.want {
			t.Errorf("IsTrivial(%q) = %v, want %v", tt.term, got, tt.want)
		}
	}
}

func TestCandidatesTruncateBeforePartition(t *testing.T) {
	persons := []string{"Alice Smith", "Bob Jones", "Carol White"}
	orgs := []string{"Acme Corp", "Globex"}

	p, o := Candidates(persons, orgs, 4)
	if !reflect.DeepEqual(p, persons) {
		t.Errorf("persons = %q", p)
	}
	if !reflect.DeepEqual(o, []string{"Acme Corp"}) {
		t.Errorf("orgs = %q", o)
	}

	p, o = Candidates(persons, orgs, 2)
	if len(o) != 0 || len(p) != 2 {
		t.Errorf("orgs should be starved when persons fill the cap: %q %q", p, o)
	}
}

func TestCandidatesTermInBothLists(t *testing.T) {
	p, o := Candidates([]string{"Tesla"}, []string{"Tesla"}, 15)
	if !reflect.DeepEqual(p, []string{"Tesla"}) || !reflect.DeepEqual(o, []string{"Tesla"}) {
		t.Errorf("got %q %q", p, o)
	}

	// both occurrences count against the cap
	p, o = Candidates([]string{"Tesla", "Elon Musk"}, []string{"Tesla", "SpaceX"}, 3)
	if !reflect.DeepEqual(p, []string{"Tesla", "Elon Musk"}) || !reflect.DeepEqual(o, []string{"Tesla"}) {
		t.Errorf("capped: got %q %q", p, o)
	}
}

type fakeLookup struct {
	mu    sync.Mutex
	defs  map[string]string
	calls []string
}

func (f *fakeLookup) Define(ctx context.Context, term string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, term)
	if d, ok := f.defs[term]; ok {
		return d, nil
	}
	return "", ErrNotFound
}

func TestBuildFromOrderAndFiltering(t *testing.T) {
	lookup := &fakeLookup{defs: map[string]string{
		"Angela Merkel":   "German politician.",
		"Emmanuel Macron": "French politician.",
		"United Nations":  "Intergovernmental organization.",
	}}
	b := NewBuilder(nil, lookup, 15)

	g := b.BuildFrom(context.Background(),
		[]string{"Emmanuel Macron", "Angela Merkel", "Monday", "Unknown Person"},
		[]string{"United Nations", "US"},
	)

	want := []string{"Emmanuel Macron", "Angela Merkel", "United Nations"}
	if !reflect.DeepEqual(g.Terms(), want) {
		t.Errorf("terms = %q, want %q", g.Terms(), want)
	}
	for _, term := range lookup.calls {
		if IsTrivial(term) {
			t.Errorf("looked up trivial term %q", term)
		}
	}
	if def, ok := g.definitionOf("United Nations"); !ok || def != "Intergovernmental organization." {
		t.Errorf("Get = %q, %v", def, ok)
	}
}

func TestBuildFromRespectsMax(t *testing.T) {
	defs := map[string]string{}
	var persons []string
	for _, name := range []string{"Alpha One", "Beta Two", "Gamma Three", "Delta Four"} {
		defs[name] = name + " def."
		persons = append(persons, name)
	}
	g := NewBuilder(nil, &fakeLookup{defs: defs}, 2).BuildFrom(context.Background(), persons, nil)
	if len(g) != 2 {
		t.Errorf("len = %d, want 2", len(g))
	}
}

func TestBuildFromEmpty(t *testing.T) {
	g := NewBuilder(nil, &fakeLookup{}, 15).BuildFrom(context.Background(), nil, nil)
	if g == nil || len(g) != 0 {
		t.Errorf("got %#v", g)
	}
	data, err := json.Marshal(g)
	if err != nil || string(data) != "{}" {
		t.Errorf("json = %s, %v", data, err)
	}
}

type staticRecognizer []entities.Entity

func (s staticRecognizer) Recognize(ctx context.Context, text string) ([]entities.Entity, error) {
	return s, nil
}

func TestBuildRunsExtraction(t *testing.T) {
	rec := staticRecognizer{
		{Text: "Ada Lovelace", Label: entities.Person},
		{Text: "London", Label: entities.GPE},
	}
	lookup := &fakeLookup{defs: map[string]string{"Ada Lovelace": "Mathematician."}}
	g := NewBuilder(entities.NewExtractor(rec), lookup, 15).Build(context.Background(), "text")
	if !reflect.DeepEqual(g.Terms(), []string{"Ada Lovelace"}) {
		t.Errorf("terms = %q", g.Terms())
	}
}

func TestGlossaryJSONKeepsOrder(t *testing.T) {
	g := Glossary{
		{Term: "Zeta", Definition: "Last letter."},
		{Term: "Alpha", Definition: `First "letter".`},
	}
	data, err := json.Marshal(g)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"Zeta":"Last letter.","Alpha":"First \"letter\"."}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}

	var back Glossary
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(back, g) {
		t.Errorf("round trip = %#v", back)
	}
	if err := json.Unmarshal([]byte(`["x"]`), &back); err == nil {
		t.Error("expected error for non-object")
	}
}

func TestFirstSentences(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"One. Two. Three.", 2, "One. Two."},
		{"Only one sentence.", 2, "Only one sentence."},
		{"John F. Kennedy was president. He was born in 1917. He died in 1963.", 2, "John F. Kennedy was president. He was born in 1917."},
		{"Is it? Yes! No.", 2, "Is it? Yes!"},
		{"Mr. Smith met Dr. Jones in St. Louis. They spoke. Then left.", 2, "Mr. Smith met Dr. Jones in St. Louis. They spoke."},
		{"She thanked Prof. Ada Lee. Mrs. Lee smiled.", 1, "She thanked Prof. Ada Lee."},
		{"Version 2.0 shipped. It was fine.", 1, "Version 2.0 shipped."},
		{"  spaced\n text.  More. ", 1, "spaced text."},
		{"", 2, ""},
	}
	for _, tt := range tests {
		if got := FirstSentences(tt.in, tt.n); got != tt.want {
			t.Errorf("FirstSentences(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestWikipediaLookup(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing User-Agent")
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/page/summary/Ada_Lovelace":
			w.Write([]byte(`{"type":"standard","title":"Ada Lovelace","extract":"Augusta Ada King was an English mathematician. She worked on the Analytical Engine. She died in 1852."}`))
		case "/page/summary/Mercury":
			w.Write([]byte(`{"type":"disambiguation","title":"Mercury","extract":"Mercury may refer to:"}`))
		case "/page/summary/Empty_Page":
			w.Write([]byte(`{"type":"standard","title":"Empty Page","extract":""}`))
		case "/page/summary/Broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	w := NewWikipediaLookup(ts.URL+"/", 5*time.Second)
	ctx := context.Background()

	def, err := w.Define(ctx, "Ada Lovelace")
	if err != nil {
		t.Fatalf("Define: %v", err)
	}
	if def != "Augusta Ada King was an English mathematician. She worked on the Analytical Engine." {
		t.Errorf("def = %q", def)
	}

	if _, err := w.Define(ctx, "Mercury"); !errors.Is(err, ErrAmbiguous) {
		t.Errorf("Mercury err = %v, want ErrAmbiguous", err)
	}
	if _, err := w.Define(ctx, "Nobody Here"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing err = %v, want ErrNotFound", err)
	}
	if _, err := w.Define(ctx, "Empty Page"); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty err = %v, want ErrNotFound", err)
	}
	if _, err := w.Define(ctx, "Broken"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("broken err = %v", err)
	}
}

type memStore struct {
	data   map[string]string
	getErr error
	puts   int
}

func (m *memStore) GetDefinition(ctx context.Context, term string) (string, bool, error) {
	if m.getErr != nil {
		return "", false, m.getErr
	}
	d, ok := m.data[term]
	return d, ok, nil
}

func (m *memStore) PutDefinition(ctx context.Context, term, def string) error {
	m.puts++
	m.data[term] = def
	return nil
}

func TestCachedLookup(t *testing.T) {
	store := &memStore{data: map[string]string{"Cached Term": "From cache."}}
	next := &fakeLookup{defs: map[string]string{"Fresh Term": "From source."}}
	c := NewCachedLookup(next, store)
	ctx := context.Background()

	if def, err := c.Define(ctx, "Cached Term"); err != nil || def != "From cache." {
		t.Errorf("cached = %q, %v", def, err)
	}
	if len(next.calls) != 0 {
		t.Error("cache hit should not call the source")
	}

	if def, err := c.Define(ctx, "Fresh Term"); err != nil || def != "From source." {
		t.Errorf("fresh = %q, %v", def, err)
	}
	if store.data["Fresh Term"] != "From source." {
		t.Error("definition not stored")
	}

	if _, err := c.Define(ctx, "Missing Term"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing err = %v", err)
	}
	if store.puts != 1 {
		t.Errorf("puts = %d, failures must not be cached", store.puts)
	}

	store.getErr = errors.New("db down")
	if def, err := c.Define(ctx, "Fresh Term"); err != nil || !strings.HasPrefix(def, "From") {
		t.Errorf("store failure should fall through: %q, %v", def, err)
	}
}
