package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"squad-planner/internal/constants"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Recognizer extracts raw text from one screenshot.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// OCRService fans screenshots out to a Recognizer. Identical images that are
// in flight at the same time are recognized once.
type OCRService struct {
	recognizer Recognizer
	flights    singleflight.Group
	logger     zerolog.Logger
}

func NewOCRService(recognizer Recognizer, logger zerolog.Logger) *OCRService {
	return &OCRService{recognizer: recognizer, logger: logger}
}

func (s *OCRService) Recognize(ctx context.Context, image []byte) (string, error) {
	sum := sha256.Sum256(image)
	key := hex.EncodeToString(sum[:])

	ch := s.flights.DoChan(key, func() (any, error) {
		// the flight outlives any single caller that gives up waiting
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.ExternalAPITimeout)
		defer cancel()
		return s.recognizer.Recognize(flightCtx, image)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			s.logger.Debug().Str("image", key[:12]).Msg("shared in-flight recognition")
		}
		return res.Val.(string), nil
	}
}

// RecognizeAll recognizes every image concurrently and returns the texts in
// input order. The first failure cancels the rest.
func (s *OCRService) RecognizeAll(ctx context.Context, images [][]byte) ([]string, error) {
	texts := make([]string, len(images))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(constants.OCRConcurrency)
	for i, image := range images {
		i, image := i, image
		g.Go(func() error {
			text, err := s.Recognize(gCtx, image)
			if err != nil {
				return fmt.Errorf("image %d: %w", i+1, err)
			}
			texts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error().Err(err).Int("images", len(images)).Msg("recognition failed")
		return nil, err
	}

	s.logger.Info().Int("images", len(images)).Msg("screenshots recognized")
	return texts, nil
}
