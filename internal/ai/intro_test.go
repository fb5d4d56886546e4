package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/formicag/ACEReportHub/internal/models"
)

func TestFallbackIntro(t *testing.T) {
	prev := func(stale int) *models.Metrics { return &models.Metrics{StaleOpsCount: stale} }

	cases := []struct {
		name string
		cur  models.Metrics
		prev *models.Metrics
		want string
	}{
		{
			name: "streak of two or more",
			cur:  models.Metrics{StaleOpsCount: 0, ConsecutiveWeeksNoStale: 4},
			want: "4 consecutive weeks",
		},
		{
			name: "clean first week",
			cur:  models.Metrics{StaleOpsCount: 0, ConsecutiveWeeksNoStale: 1},
			want: "every opportunity in the pipeline is up to date",
		},
		{
			name: "improving",
			cur:  models.Metrics{StaleOpsCount: 2},
			prev: prev(5),
			want: "down from 5 to 2",
		},
		{
			name: "worsening",
			cur:  models.Metrics{StaleOpsCount: 6},
			prev: prev(3),
			want: "crept up from 3 to 6",
		},
		{
			name: "no prior context",
			cur:  models.Metrics{StaleOpsCount: 3},
			want: "3 opportunities need an update",
		},
		{
			name: "flat week on week",
			cur:  models.Metrics{StaleOpsCount: 4},
			prev: prev(4),
			want: "4 opportunities need an update",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FallbackIntro(tc.cur, tc.prev)
			if !strings.Contains(got, tc.want) {
				t.Errorf("FallbackIntro = %q, want substring %q", got, tc.want)
			}
		})
	}
}

func TestGenerateIntro_UsesModelResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"response": "Great week everyone.", "done": true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-model")
	got := c.GenerateIntro(context.Background(), models.Metrics{}, nil, models.ComparisonResult{})
	if got != "Great week everyone." {
		t.Errorf("expected model response, got %q", got)
	}
}

func TestGenerateIntro_FallsBackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-model")
	got := c.GenerateIntro(context.Background(), models.Metrics{StaleOpsCount: 0, ConsecutiveWeeksNoStale: 1}, nil, models.ComparisonResult{})
	if !strings.Contains(got, "up to date") {
		t.Errorf("expected fallback message, got %q", got)
	}
}

func TestGenerateIntro_FallsBackOnEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response": "   ", "done": true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-model")
	got := c.GenerateIntro(context.Background(), models.Metrics{StaleOpsCount: 2}, nil, models.ComparisonResult{})
	if !strings.Contains(got, "2 opportunities need an update") {
		t.Errorf("expected fallback message, got %q", got)
	}
}

func TestBuildPrompt_IncludesContext(t *testing.T) {
	cur := models.Metrics{TotalReportableOps: 10, StaleOpsCount: 2, AvgDaysSinceUpdate: 8.5, TotalARR: 12000, ConsecutiveWeeksNoStale: 0}
	prev := &models.Metrics{TotalReportableOps: 9, StaleOpsCount: 4}
	cmp := models.ComparisonResult{NewOps: make([]models.OpportunityRecord, 3)}

	prompt := buildPrompt(cur, prev, cmp)
	for _, want := range []string{"10 open opportunities", "2 stale", "Last week: 9 open, 4 stale", "3 new opportunities"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
