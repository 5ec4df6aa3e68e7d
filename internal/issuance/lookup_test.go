package issuance

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestLookupUniformFailure(t *testing.T) {
	engine, templates, db := newTestEngine(t)
	tmpl := seedScenario(t, templates, db)
	ctx := context.Background()

	record, err := engine.Issue(ctx, IssueParams{TemplateID: tmpl.ID, Email: "ana@x.com"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	lookup := NewLookup(db)

	// A random token of the same length as a real one fails the same way
	// as garbage input: one uniform error, no reason leaked.
	unknown, err := MintToken(24)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if len(unknown) != len(record.Token) {
		t.Fatalf("test setup: token lengths differ (%d vs %d)", len(unknown), len(record.Token))
	}

	for _, token := range []string{
		unknown,
		"",
		"not a token!!",
		strings.Repeat("a", maxTokenLength+1),
	} {
		if _, err := lookup.Find(ctx, token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("token %q: err = %v, want ErrInvalidToken", token, err)
		}
	}
}
