package extract

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"
)

// Config holds extraction strategy thresholds.
type Config struct {
	DirectThreshold int // max runes for a single direct request
	MaxSegmentChars int // segment ceiling for the segmented path
	MaxTokens       int // completion token budget per request
}

// Extractor chooses and executes the extraction path for a given text:
// direct for short texts, blob-upload when the transport supports it,
// segmented as the universal fallback.
type Extractor struct {
	cfg       Config
	transport Transport
	seg       *Segmenter
	logger    *slog.Logger
}

func NewExtractor(transport Transport, cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DirectThreshold <= 0 {
		cfg.DirectThreshold = 8000
	}
	if cfg.MaxSegmentChars <= 0 {
		cfg.MaxSegmentChars = 6000
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 16384
	}
	return &Extractor{
		cfg:       cfg,
		transport: transport,
		seg:       NewSegmenter(cfg.MaxSegmentChars),
		logger:    logger,
	}
}

// Extract runs the full strategy chain and returns all records found.
func (e *Extractor) Extract(ctx context.Context, text string) ([]SchoolRecord, error) {
	size := utf8.RuneCountInString(text)
	if size <= e.cfg.DirectThreshold {
		e.logger.Info("extract.direct", "text_len", size)
		return e.direct(ctx, text)
	}

	if bt, ok := e.transport.(BlobTransport); ok {
		e.logger.Info("extract.blob", "text_len", size)
		records, err := e.viaBlob(ctx, bt, text)
		if err == nil {
			return records, nil
		}
		// Blob failures never surface to the caller; fall through.
		e.logger.Warn("extract.blob_failed", "error", err)
	}

	e.logger.Info("extract.segmented", "text_len", size)
	return e.segmented(ctx, text), nil
}

// ExtractStream sends the whole text in one streaming request, emitting each
// record as it closes. At stream end (or failure) terminal recovery runs over
// the residual buffer so truncation still yields the records that completed.
// The emitted count is returned alongside any transport error; records
// emitted before the error remain valid partial results.
func (e *Extractor) ExtractStream(ctx context.Context, text string, emit func(SchoolRecord) error) (int, error) {
	req := Request{
		Prompt:    BuildPrompt(text),
		Schema:    BuildSchoolJSONSchema(),
		MaxTokens: e.cfg.MaxTokens,
	}

	parser := NewStreamParser()
	count := 0
	streamErr := e.transport.Stream(ctx, req, func(delta string) error {
		for _, rec := range parser.Feed(delta) {
			if err := emit(rec); err != nil {
				return err
			}
			count++
		}
		return nil
	})

	for _, rec := range parser.Finish() {
		if err := emit(rec); err != nil {
			return count, err
		}
		count++
	}

	if streamErr != nil {
		return count, fmt.Errorf("stream extract: %w", streamErr)
	}
	return count, nil
}

func (e *Extractor) direct(ctx context.Context, text string) ([]SchoolRecord, error) {
	req := Request{
		Prompt:    BuildPrompt(text),
		Schema:    BuildSchoolJSONSchema(),
		MaxTokens: e.cfg.MaxTokens,
	}
	response, err := e.transport.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("direct extract: %w", err)
	}
	return e.parseChecked(response)
}

func (e *Extractor) viaBlob(ctx context.Context, bt BlobTransport, text string) ([]SchoolRecord, error) {
	const blobName = "district-text.txt"
	req := Request{
		Prompt:    BuildBlobPrompt(blobName),
		Schema:    BuildSchoolJSONSchema(),
		MaxTokens: e.cfg.MaxTokens,
	}
	response, err := bt.CompleteWithBlob(ctx, req, blobName, []byte(text))
	if err != nil {
		return nil, err
	}
	return e.parseChecked(response)
}

// segmented splits the text and runs direct extraction per segment. A single
// segment's failure is logged and skipped; it never aborts its siblings.
func (e *Extractor) segmented(ctx context.Context, text string) []SchoolRecord {
	segments := e.seg.Split(text)
	e.logger.Info("extract.segments", "count", len(segments))

	var all []SchoolRecord
	for i, seg := range segments {
		if ctx.Err() != nil {
			e.logger.Warn("extract.segment_cancelled", "segment", i+1)
			break
		}
		records, err := e.direct(ctx, seg)
		if err != nil {
			e.logger.Warn("extract.segment_failed", "segment", i+1, "total", len(segments), "error", err)
			continue
		}
		all = append(all, records...)
	}
	return all
}

// parseChecked validates the response against the schools schema first
// (cheap signal for the logs), then parses leniently either way.
func (e *Extractor) parseChecked(response string) ([]SchoolRecord, error) {
	body := response
	if m := fenceRe.FindStringSubmatch(body); m != nil {
		body = m[1]
	}
	if err := ValidateJSONAgainstSchema(BuildSchoolJSONSchema(), []byte(body)); err != nil {
		e.logger.Warn("extract.schema_mismatch", "error", err)
	}
	return ParseResponse(response)
}
