package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/service/analyzer"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/worker/pool"
)

type BucketOrder string

const (
	// BucketOrderSequential exhausts each question bucket before the next, in
	// the order buckets were first seen.
	BucketOrderSequential BucketOrder = "sequential"
	// BucketOrderRoundRobin takes one pair from each bucket per turn.
	BucketOrderRoundRobin BucketOrder = "round_robin"
)

type SchedulerConfig struct {
	AcceptThreshold float64
	MaxComparisons  int
	MinAnswerLength int
	Order           BucketOrder
	MaxWorkers      int
}

type ComparisonOutcome struct {
	Matches []models.SimilarityMatch
	// Comparisons counts pairs actually scored. It never exceeds MaxComparisons.
	Comparisons     int
	Partial         bool
	Buckets         int
	ExcludedAnswers int
	Duration        time.Duration
}

type ComparisonScheduler interface {
	Compare(ctx context.Context, submissions []models.Submission) (*ComparisonOutcome, error)
}

type comparisonScheduler struct {
	scorer analyzer.SimilarityScorer
	config SchedulerConfig
	logger zerolog.Logger
}

func NewComparisonScheduler(scorer analyzer.SimilarityScorer, config SchedulerConfig, logger zerolog.Logger) ComparisonScheduler {
	if config.Order == "" {
		config.Order = BucketOrderSequential
	}
	if config.MaxWorkers < 1 {
		config.MaxWorkers = 1
	}
	return &comparisonScheduler{
		scorer: scorer,
		config: config,
		logger: logger.With().Str("component", "comparison_scheduler").Logger(),
	}
}

type bucketEntry struct {
	student      models.StudentRef
	questionText string
	text         string
}

type questionBucket struct {
	questionIndex int
	entries       []bucketEntry
}

// pairCursor walks the unordered pairs (i<j) of one bucket in load order and
// skips pairs written by the same student.
type pairCursor struct {
	bucket *questionBucket
	i, j   int
}

func newPairCursor(bucket *questionBucket) *pairCursor {
	return &pairCursor{bucket: bucket, i: 0, j: 1}
}

func (c *pairCursor) next() (bucketEntry, bucketEntry, bool) {
	entries := c.bucket.entries
	for c.i < len(entries)-1 {
		if c.j >= len(entries) {
			c.i++
			c.j = c.i + 1
			continue
		}
		a, b := entries[c.i], entries[c.j]
		c.j++
		if a.student.ID == b.student.ID {
			continue
		}
		return a, b, true
	}
	return bucketEntry{}, bucketEntry{}, false
}

type candidatePair struct {
	seq           int
	questionIndex int
	a, b          bucketEntry
}

// pairSource yields candidate pairs across buckets in the configured order.
type pairSource struct {
	order   BucketOrder
	cursors []*pairCursor
	current int
}

func newPairSource(buckets []*questionBucket, order BucketOrder) *pairSource {
	cursors := make([]*pairCursor, 0, len(buckets))
	for _, bucket := range buckets {
		cursors = append(cursors, newPairCursor(bucket))
	}
	return &pairSource{order: order, cursors: cursors}
}

func (s *pairSource) next() (candidatePair, bool) {
	if s.order == BucketOrderRoundRobin {
		return s.nextRoundRobin()
	}

	for s.current < len(s.cursors) {
		cursor := s.cursors[s.current]
		if a, b, ok := cursor.next(); ok {
			return candidatePair{questionIndex: cursor.bucket.questionIndex, a: a, b: b}, true
		}
		s.current++
	}
	return candidatePair{}, false
}

func (s *pairSource) nextRoundRobin() (candidatePair, bool) {
	for len(s.cursors) > 0 {
		if s.current >= len(s.cursors) {
			s.current = 0
		}
		cursor := s.cursors[s.current]
		a, b, ok := cursor.next()
		if !ok {
			s.cursors = append(s.cursors[:s.current], s.cursors[s.current+1:]...)
			continue
		}
		s.current++
		return candidatePair{questionIndex: cursor.bucket.questionIndex, a: a, b: b}, true
	}
	return candidatePair{}, false
}

type scoredMatch struct {
	seq   int
	match models.SimilarityMatch
}

// Compare scores candidate pairs on a bounded pool. This goroutine owns the
// budget: a pair is charged before it is queued and nothing is queued once the
// budget is spent.
func (s *comparisonScheduler) Compare(ctx context.Context, submissions []models.Submission) (*ComparisonOutcome, error) {
	startTime := time.Now()

	buckets, excluded := s.populateBuckets(submissions)
	outcome := &ComparisonOutcome{
		Matches:         []models.SimilarityMatch{},
		Buckets:         len(buckets),
		ExcludedAnswers: excluded,
	}

	workers := pool.New(s.config.MaxWorkers, s.logger)
	if err := workers.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start worker pool: %w", err)
	}

	results := make(chan scoredMatch, s.config.MaxWorkers*4)
	var collected []scoredMatch
	var collectorWg sync.WaitGroup
	collectorWg.Add(1)
	go func() {
		defer collectorWg.Done()
		for result := range results {
			collected = append(collected, result)
		}
	}()

	var performed atomic.Int64
	source := newPairSource(buckets, s.config.Order)
	claimed := 0
	var produceErr error

	for claimed < s.config.MaxComparisons {
		if err := ctx.Err(); err != nil {
			produceErr = err
			break
		}

		pair, ok := source.next()
		if !ok {
			break
		}
		claimed++
		pair.seq = claimed

		err := workers.Submit(ctx, func() {
			if ctx.Err() != nil {
				return
			}
			match, accepted := s.score(pair)
			performed.Add(1)
			if accepted {
				results <- scoredMatch{seq: pair.seq, match: match}
			}
		})
		if err != nil {
			claimed--
			produceErr = err
			break
		}
	}

	if err := workers.Stop(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to stop worker pool")
	}
	close(results)
	collectorWg.Wait()

	if produceErr != nil {
		return nil, fmt.Errorf("comparison run interrupted after %d pairs: %w", performed.Load(), produceErr)
	}

	sort.SliceStable(collected, func(i, j int) bool {
		if collected[i].match.SimilarityScore != collected[j].match.SimilarityScore {
			return collected[i].match.SimilarityScore > collected[j].match.SimilarityScore
		}
		return collected[i].seq < collected[j].seq
	})
	for _, result := range collected {
		outcome.Matches = append(outcome.Matches, result.match)
	}

	outcome.Comparisons = int(performed.Load())
	outcome.Partial = claimed >= s.config.MaxComparisons
	outcome.Duration = time.Since(startTime)

	s.logger.Info().
		Int("buckets", outcome.Buckets).
		Int("excluded_answers", outcome.ExcludedAnswers).
		Int("comparisons", outcome.Comparisons).
		Int("matches", len(outcome.Matches)).
		Bool("partial", outcome.Partial).
		Str("bucket_order", string(s.config.Order)).
		Dur("duration", outcome.Duration).
		Msg("Pairwise comparison finished")

	return outcome, nil
}

func (s *comparisonScheduler) score(pair candidatePair) (models.SimilarityMatch, bool) {
	score := analyzer.RoundScore(s.scorer.Score(pair.a.text, pair.b.text))
	if score < s.config.AcceptThreshold {
		return models.SimilarityMatch{}, false
	}

	questionText := pair.a.questionText
	if questionText == "" {
		questionText = pair.b.questionText
	}

	return models.SimilarityMatch{
		Student1:        pair.a.student,
		Student2:        pair.b.student,
		QuestionIndex:   pair.questionIndex,
		QuestionText:    questionText,
		SimilarityScore: score,
		SuspicionLevel:  s.scorer.Tier(score),
		Student1Answer:  pair.a.text,
		Student2Answer:  pair.b.text,
	}, true
}

// populateBuckets groups answers by question index in first-seen order. Blank
// answers and answers shorter than MinAnswerLength runes are left out.
func (s *comparisonScheduler) populateBuckets(submissions []models.Submission) ([]*questionBucket, int) {
	var buckets []*questionBucket
	byIndex := make(map[int]*questionBucket)
	excluded := 0

	for _, submission := range submissions {
		student := submission.Student()
		for _, answer := range submission.Answers {
			text := strings.TrimSpace(answer.Text)
			if text == "" {
				continue
			}
			if utf8.RuneCountInString(text) < s.config.MinAnswerLength {
				excluded++
				continue
			}

			bucket, ok := byIndex[answer.QuestionIndex]
			if !ok {
				bucket = &questionBucket{questionIndex: answer.QuestionIndex}
				byIndex[answer.QuestionIndex] = bucket
				buckets = append(buckets, bucket)
			}
			bucket.entries = append(bucket.entries, bucketEntry{
				student:      student,
				questionText: answer.QuestionText,
				text:         text,
			})
		}
	}

	for _, bucket := range buckets {
		s.logger.Debug().
			Int("question_index", bucket.questionIndex).
			Int("answers", len(bucket.entries)).
			Msg("Question bucket populated")
	}

	return buckets, excluded
}
