package signal

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"solana-sniper/internal/domain"
)

// Source produces an unbounded stream of signals. The channel closes
// when the source is exhausted or the context is cancelled.
type Source interface {
	Stream(ctx context.Context) (<-chan domain.Signal, error)
}

// rawRecord is one line of JSONL input from a signal producer.
type rawRecord struct {
	Source      string   `json:"source"`
	Text        string   `json:"text"`
	Mints       []string `json:"mints,omitempty"`        // pre-resolved, optional
	MentionedAt int64    `json:"mentioned_at,omitempty"` // Unix millis, optional
}

// JSONLSource reads newline-delimited JSON records from a reader and
// extracts asset references from their text. Malformed lines are logged
// and skipped; the stream keeps going.
type JSONLSource struct {
	name   string
	r      io.Reader
	logger *logrus.Entry
}

// NewJSONLSource creates a source reading JSONL records from r.
func NewJSONLSource(name string, r io.Reader, logger *logrus.Logger) *JSONLSource {
	if logger == nil {
		logger = logrus.New()
	}
	return &JSONLSource{
		name:   name,
		r:      r,
		logger: logger.WithField("source", name),
	}
}

var _ Source = (*JSONLSource)(nil)

// Stream starts reading records and returns the signal channel.
func (s *JSONLSource) Stream(ctx context.Context) (<-chan domain.Signal, error) {
	out := make(chan domain.Signal, 64)

	go func() {
		defer close(out)

		scanner := bufio.NewScanner(s.r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var rec rawRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				s.logger.WithError(err).Warn("skipping malformed signal record")
				continue
			}

			sig := domain.Signal{
				Source:      rec.Source,
				Text:        rec.Text,
				Mints:       rec.Mints,
				Tickers:     ExtractTickers(rec.Text),
				MentionedAt: rec.MentionedAt,
			}
			if sig.Source == "" {
				sig.Source = s.name
			}
			if len(sig.Mints) == 0 {
				sig.Mints = ExtractMints(rec.Text)
			}
			if sig.MentionedAt == 0 {
				sig.MentionedAt = time.Now().UnixMilli()
			}

			select {
			case out <- sig:
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil {
			s.logger.WithError(err).Error("signal stream read failed")
		}
	}()

	return out, nil
}
