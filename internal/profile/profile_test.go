package profile

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParse_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, f := range Families {
		got, err := Parse(f.String())
		if err != nil {
			t.Fatalf("Parse(%q): %v", f, err)
		}
		if got != f {
			t.Errorf("Parse(%q) = %v, want %v", f.String(), got, f)
		}
	}

	if _, err := Parse("gpt4"); err == nil || !strings.Contains(err.Error(), "unknown model") {
		t.Errorf("Parse(gpt4) error = %v", err)
	}
	if got, err := Parse("  PlayPart_Trainer "); err != nil || got != PlayPart {
		t.Errorf("Parse is case-insensitive and trims: got %v, %v", got, err)
	}
}

func TestFamily_Valid(t *testing.T) {
	t.Parallel()

	if Unspecified.Valid() || Family(42).Valid() {
		t.Error("Unspecified and out-of-range families must be invalid")
	}
	if !DistilGPT2.Valid() || !PlayPart.Valid() {
		t.Error("supported families must be valid")
	}
}

func TestFamily_JSON(t *testing.T) {
	t.Parallel()

	var v struct {
		Model Family `json:"model"`
	}
	if err := json.Unmarshal([]byte(`{"model":"playpart_trainer"}`), &v); err != nil {
		t.Fatal(err)
	}
	if v.Model != PlayPart {
		t.Errorf("decoded %v", v.Model)
	}
	if err := json.Unmarshal([]byte(`{"model":"nope"}`), &v); err == nil {
		t.Error("expected decode error for unknown model")
	}
	b, _ := json.Marshal(v)
	if string(b) != `{"model":"playpart_trainer"}` {
		t.Errorf("encoded %s", b)
	}
}

func TestDefault_Values(t *testing.T) {
	t.Parallel()

	d := Default(DistilGPT2)
	if d.Template != TemplateCoachFR || d.ContextDocs != 2 || d.ContextChars != 80 ||
		d.MaxPromptChars != 400 || d.MaxResponseChars != 400 || d.MinResponseChars != 10 {
		t.Errorf("distilgpt2 limits: %+v", d)
	}
	if d.StrictCleanup {
		t.Error("distilgpt2 must not use strict cleanup")
	}
	if s := d.Sampling; s.MaxNewTokens != 150 || s.TopK != 50 || s.NoRepeatNgramSize != 3 || !s.DoSample {
		t.Errorf("distilgpt2 sampling: %+v", s)
	}

	p := Default(PlayPart)
	if p.Template != TemplateTrainerEN || p.ContextDocs != 1 || p.ContextChars != 60 ||
		p.MaxPromptChars != 200 || p.MaxResponseChars != 200 || p.MinResponseChars != 20 {
		t.Errorf("playpart limits: %+v", p)
	}
	if !p.StrictCleanup || p.Language != English {
		t.Errorf("playpart cleanup/language: %+v", p)
	}
	s := p.Sampling
	if s.MaxNewTokens != 60 || s.RepetitionPenalty != 1.4 || s.PadTokenID == nil || *s.PadTokenID != 50256 {
		t.Errorf("playpart sampling: %+v", s)
	}
}

func TestDefault_PanicsOnUnspecified(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	Default(Unspecified)
}

// ----------------------------------------------------------------------------
// Table
// ----------------------------------------------------------------------------

func TestTable_Overrides(t *testing.T) {
	t.Parallel()

	tbl, err := NewTable(map[Family]Overrides{PlayPart: {ContextDocs: 3}})
	if err != nil {
		t.Fatal(err)
	}
	p, ok := tbl.Get(PlayPart)
	if !ok || p.ContextDocs != 3 {
		t.Errorf("override not applied: %+v", p)
	}
	d, _ := tbl.Get(DistilGPT2)
	if d.ContextDocs != 2 {
		t.Errorf("untouched family changed: %d", d.ContextDocs)
	}
	if _, ok := tbl.Get(Unspecified); ok {
		t.Error("Get(Unspecified) must report !ok")
	}
	if all := tbl.All(); len(all) != 2 || all[0].Family != DistilGPT2 {
		t.Errorf("All(): %+v", all)
	}
}

func TestTable_RejectsBadOverrides(t *testing.T) {
	t.Parallel()

	if _, err := NewTable(map[Family]Overrides{Unspecified: {ContextDocs: 1}}); err == nil {
		t.Error("expected error for unspecified family")
	}
	if _, err := NewTable(map[Family]Overrides{DistilGPT2: {ContextDocs: -1}}); err == nil {
		t.Error("expected error for negative context docs")
	}
}
