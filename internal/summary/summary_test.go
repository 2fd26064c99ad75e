package summary_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/edgard/signalbot/internal/command"
	"github.com/edgard/signalbot/internal/summary"
)

type fakeStore struct {
	byCountLines []string
	sinceLines   []string
	err          error

	gotCount   *int
	gotStartMs *int64
}

func (s *fakeStore) GetTranscriptByCount(_ context.Context, limit int) ([]string, error) {
	s.gotCount = &limit
	return s.byCountLines, s.err
}

func (s *fakeStore) GetTranscriptSince(_ context.Context, startMs int64) ([]string, error) {
	s.gotStartMs = &startMs
	return s.sinceLines, s.err
}

type fakeSummarizer struct {
	result string
	err    error

	gotTranscript string
	gotQuestion   string
	calls         int
}

func (s *fakeSummarizer) Summarize(_ context.Context, transcript, question string) (string, error) {
	s.calls++
	s.gotTranscript = transcript
	s.gotQuestion = question
	return s.result, s.err
}

func intPtr(v int) *int { return &v }

func TestResolveWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		count    *int
		hours    *int
		expected int64
		wantErr  error
	}{
		{
			name:    "neither count nor hours",
			wantErr: summary.ErrNoWindow,
		},
		{
			name:    "hours above the ceiling",
			hours:   intPtr(169),
			wantErr: summary.ErrWindowTooLarge,
		},
		{
			name:     "hours at the ceiling",
			hours:    intPtr(168),
			expected: now.UnixMilli() - 168*3600_000,
		},
		{
			name:     "zero hours means all history",
			hours:    intPtr(0),
			expected: 0,
		},
		{
			name:     "plain hours window",
			hours:    intPtr(24),
			expected: now.UnixMilli() - 24*3600_000,
		},
		{
			name:     "count only falls back to the week window",
			count:    intPtr(10),
			expected: now.UnixMilli() - 168*3600_000,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := summary.ResolveWindow(tc.count, tc.hours, now)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("ResolveWindow() error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveWindow() unexpected error: %v", err)
			}
			if got != tc.expected {
				t.Errorf("ResolveWindow() = %d, want %d", got, tc.expected)
			}
		})
	}
}

func TestPipelineGenerate(t *testing.T) {
	t.Parallel()

	t.Run("hours window joins lines chronologically", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{sinceLines: []string{"alice: one", "bob: two", "alice: three"}}
		summarizer := &fakeSummarizer{result: "a fine summary"}
		pipeline := summary.NewPipeline(store, summarizer, nil)

		got, err := pipeline.Generate(context.Background(), &command.SummaryRequest{Hours: intPtr(24)})
		if err != nil {
			t.Fatalf("Generate() unexpected error: %v", err)
		}
		if got != "a fine summary" {
			t.Errorf("Generate() = %q, want %q", got, "a fine summary")
		}
		if store.gotStartMs == nil {
			t.Fatal("Generate() did not query by time window")
		}
		want := "alice: one\nbob: two\nalice: three"
		if summarizer.gotTranscript != want {
			t.Errorf("transcript = %q, want %q", summarizer.gotTranscript, want)
		}
	})

	t.Run("count takes priority over hours", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{byCountLines: []string{"alice: latest"}}
		summarizer := &fakeSummarizer{result: "ok"}
		pipeline := summary.NewPipeline(store, summarizer, nil)

		req := &command.SummaryRequest{Count: intPtr(5), Hours: intPtr(168)}
		if _, err := pipeline.Generate(context.Background(), req); err != nil {
			t.Fatalf("Generate() unexpected error: %v", err)
		}
		if store.gotCount == nil {
			t.Fatal("Generate() did not query by count")
		}
		if *store.gotCount != 5 {
			t.Errorf("count query limit = %d, want 5", *store.gotCount)
		}
		if store.gotStartMs != nil {
			t.Error("Generate() queried by time window despite a count being set")
		}
	})

	t.Run("question is forwarded to the summarizer", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{sinceLines: []string{"alice: hi"}}
		summarizer := &fakeSummarizer{result: "ok"}
		pipeline := summary.NewPipeline(store, summarizer, nil)

		req := &command.SummaryRequest{Hours: intPtr(168), Question: "who said hi?"}
		if _, err := pipeline.Generate(context.Background(), req); err != nil {
			t.Fatalf("Generate() unexpected error: %v", err)
		}
		if summarizer.gotQuestion != "who said hi?" {
			t.Errorf("question = %q, want %q", summarizer.gotQuestion, "who said hi?")
		}
	})

	t.Run("empty transcript still reaches the summarizer", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{}
		summarizer := &fakeSummarizer{result: "nothing to summarize"}
		pipeline := summary.NewPipeline(store, summarizer, nil)

		got, err := pipeline.Generate(context.Background(), &command.SummaryRequest{Hours: intPtr(1)})
		if err != nil {
			t.Fatalf("Generate() unexpected error: %v", err)
		}
		if summarizer.calls != 1 {
			t.Fatalf("summarizer calls = %d, want 1", summarizer.calls)
		}
		if summarizer.gotTranscript != "" {
			t.Errorf("transcript = %q, want empty", summarizer.gotTranscript)
		}
		if got != "nothing to summarize" {
			t.Errorf("Generate() = %q, want %q", got, "nothing to summarize")
		}
	})

	t.Run("window resolution error is returned verbatim", func(t *testing.T) {
		t.Parallel()

		summarizer := &fakeSummarizer{}
		pipeline := summary.NewPipeline(&fakeStore{}, summarizer, nil)

		_, err := pipeline.Generate(context.Background(), &command.SummaryRequest{})
		if !errors.Is(err, summary.ErrNoWindow) {
			t.Fatalf("Generate() error = %v, want %v", err, summary.ErrNoWindow)
		}
		if summarizer.calls != 0 {
			t.Errorf("summarizer called %d times on a resolution failure", summarizer.calls)
		}
	})

	t.Run("store failure is wrapped", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{err: errors.New("disk on fire")}
		pipeline := summary.NewPipeline(store, &fakeSummarizer{}, nil)

		_, err := pipeline.Generate(context.Background(), &command.SummaryRequest{Hours: intPtr(1)})
		if err == nil || !strings.Contains(err.Error(), "failed to retrieve transcript") {
			t.Fatalf("Generate() error = %v, want transcript retrieval failure", err)
		}
	})

	t.Run("summarizer failure is wrapped", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{sinceLines: []string{"alice: hi"}}
		summarizer := &fakeSummarizer{err: errors.New("model unavailable")}
		pipeline := summary.NewPipeline(store, summarizer, nil)

		_, err := pipeline.Generate(context.Background(), &command.SummaryRequest{Hours: intPtr(1)})
		if err == nil || !strings.Contains(err.Error(), "summarization failed") {
			t.Fatalf("Generate() error = %v, want summarization failure", err)
		}
	})
}

func TestPrompt(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		transcript string
		question   string
		prefix     string
		expected   string
	}{
		{
			name:       "question prompt ignores the prefix",
			transcript: "alice: hi",
			question:   "who spoke?",
			prefix:     "Summarize this chat.",
			expected:   "Answer the following question, based on the text that follows it:\nwho spoke?\n\nalice: hi",
		},
		{
			name:       "plain prompt uses the prefix",
			transcript: "alice: hi",
			prefix:     "Summarize this chat.",
			expected:   "Summarize this chat.\n\nalice: hi\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := summary.Prompt(tc.transcript, tc.question, tc.prefix); got != tc.expected {
				t.Errorf("Prompt() = %q, want %q", got, tc.expected)
			}
		})
	}
}
