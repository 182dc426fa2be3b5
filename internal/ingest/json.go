package ingest

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cascade-backflow/leadroute/internal/model"
)

// ErrNotArray is returned when a JSON lead document is not an array.
var ErrNotArray = eris.New("json: expected an array of leads")

// DecodeJSONArray decodes a JSON array streaming, sending each element to a channel.
// Expects input in the form [{...},{...}].
// Both channels are closed when processing completes.
func DecodeJSONArray[T any](ctx context.Context, r io.Reader) (<-chan T, <-chan error) {
	outCh := make(chan T, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		decoder := json.NewDecoder(r)

		tok, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				errCh <- eris.Wrap(ErrNotArray, "json: empty document")
				return
			}
			errCh <- eris.Wrap(err, "json: read opening token")
			return
		}

		delim, ok := tok.(json.Delim)
		if !ok || delim != '[' {
			errCh <- eris.Wrapf(ErrNotArray, "json: got %v", tok)
			return
		}

		for decoder.More() {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}

			var item T
			if err := decoder.Decode(&item); err != nil {
				errCh <- eris.Wrap(err, "json: decode element")
				return
			}

			select {
			case outCh <- item:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}
		}

		// Consume closing bracket
		if _, err := decoder.Token(); err != nil && err != io.EOF {
			errCh <- eris.Wrap(err, "json: read closing token")
		}
	}()

	return outCh, errCh
}

// DecodeLeadsJSON reads a JSON array of leads in the API's camelCase shape.
// An element that is valid JSON but does not fit a lead (a string latitude,
// a fractional deviceCount, a bare number) is kept with DecodeError set so
// the batch can count it as failed; only a broken document is an error.
func DecodeLeadsJSON(ctx context.Context, r io.Reader) ([]model.RawLead, error) {
	ch, errCh := DecodeJSONArray[json.RawMessage](ctx, r)

	var leads []model.RawLead
	for raw := range ch {
		var lead model.RawLead
		err := json.Unmarshal(raw, &lead)
		normalizeLead(&lead, len(leads)+1)
		if err != nil {
			lead.DecodeError = err.Error()
			zap.L().Debug("ingest: malformed lead, skipping",
				zap.String("id", lead.ID),
				zap.Error(err),
			)
		}
		leads = append(leads, lead)
	}
	for err := range errCh {
		if err != nil {
			return nil, err
		}
	}
	return leads, nil
}

// IsNotArray reports whether err came from a non-array JSON document.
func IsNotArray(err error) bool {
	return err != nil && eris.Is(err, ErrNotArray)
}
