package mcpserver

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/redlinehq/redline/internal/annotate"
)

// SegmentOutput is the flat wire shape of a render segment. Unlike the HTTP
// API's dual string-or-object encoding, MCP tool schemas need a single fixed
// shape, so literal segments simply carry a null annotation.
type SegmentOutput struct {
	Text       string               `json:"text" jsonschema:"the slice of the aligned text covered by this segment"`
	Annotation *annotate.Correction `json:"annotation,omitempty" jsonschema:"the correction applying to this segment, absent for literal text"`
}

// CorrectInput is the input schema for the correct_text tool.
type CorrectInput struct {
	Text string `json:"text" jsonschema:"the text to correct"`
}

// CorrectOutput is the output schema for the correct_text tool.
type CorrectOutput struct {
	CleanText    string                `json:"cleanText"`
	OriginalText string                `json:"originalText"`
	Corrections  []annotate.Correction `json:"corrections"`
	Segments     []SegmentOutput       `json:"segments"`
	Strategy     string                `json:"strategy"`
	Model        string                `json:"model"`
}

// DiffInput is the input schema for the diff_spans tool.
type DiffInput struct {
	OriginalText  string `json:"originalText" jsonschema:"the text before correction"`
	CorrectedText string `json:"correctedText" jsonschema:"the text after correction"`
}

// DiffOutput is the output schema for the diff_spans tool.
type DiffOutput struct {
	CleanText   string                `json:"cleanText"`
	Corrections []annotate.Correction `json:"corrections"`
}

// ParseInput is the input schema for the parse_markup tool.
type ParseInput struct {
	MarkedText string `json:"markedText" jsonschema:"text containing inline <correction> tags"`
}

// ParseOutput is the output schema for the parse_markup tool.
type ParseOutput struct {
	CleanText   string                `json:"cleanText"`
	Corrections []annotate.Correction `json:"corrections"`
	Strategy    string                `json:"strategy"`
}

// AlignInput is the input schema for the align_spans tool.
type AlignInput struct {
	Text        string                `json:"text" jsonschema:"the text to segment"`
	Corrections []annotate.Correction `json:"corrections" jsonschema:"correction spans to align against the text"`
}

// AlignOutput is the output schema for the align_spans tool.
type AlignOutput struct {
	Segments []SegmentOutput `json:"segments"`
	Dropped  int             `json:"dropped"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "correct_text",
		Description: "Send text through the LLM corrector and return the corrected text with annotated spans and render segments",
	}, s.handleCorrectText)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "diff_spans",
		Description: "Compute word-level correction spans between an original and a corrected text",
	}, s.handleDiffSpans)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "parse_markup",
		Description: "Parse text containing inline <correction> tags into clean text plus correction spans",
	}, s.handleParseMarkup)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "align_spans",
		Description: "Segment a text by correction spans for rendering, relocating drifted offsets",
	}, s.handleAlignSpans)
}

func (s *Server) handleCorrectText(ctx context.Context, _ *mcp.CallToolRequest, input CorrectInput) (*mcp.CallToolResult, CorrectOutput, error) {
	if s.corrector == nil {
		return nil, CorrectOutput{}, errors.New("no LLM provider configured")
	}
	if input.Text == "" {
		return nil, CorrectOutput{}, errors.New("text is required")
	}

	result, err := s.corrector.Correct(ctx, input.Text)
	if err != nil {
		return nil, CorrectOutput{}, err
	}

	segments, _ := annotate.Align(result.CleanText, result.Corrections)
	return nil, CorrectOutput{
		CleanText:    result.CleanText,
		OriginalText: result.OriginalText,
		Corrections:  result.Corrections,
		Segments:     toSegmentOutputs(segments),
		Strategy:     result.Strategy,
		Model:        result.Model,
	}, nil
}

func (s *Server) handleDiffSpans(_ context.Context, _ *mcp.CallToolRequest, input DiffInput) (*mcp.CallToolResult, DiffOutput, error) {
	if input.OriginalText == "" {
		return nil, DiffOutput{}, errors.New("originalText is required")
	}
	if input.CorrectedText == "" {
		return nil, DiffOutput{}, errors.New("correctedText is required")
	}

	result := annotate.ExtractSpans(input.OriginalText, input.CorrectedText)
	return nil, DiffOutput{
		CleanText:   result.CleanText,
		Corrections: result.Corrections,
	}, nil
}

func (s *Server) handleParseMarkup(_ context.Context, _ *mcp.CallToolRequest, input ParseInput) (*mcp.CallToolResult, ParseOutput, error) {
	if input.MarkedText == "" {
		return nil, ParseOutput{}, errors.New("markedText is required")
	}

	result, strategy := annotate.ParseMarkup(input.MarkedText)
	return nil, ParseOutput{
		CleanText:   result.CleanText,
		Corrections: result.Corrections,
		Strategy:    strategy,
	}, nil
}

func (s *Server) handleAlignSpans(_ context.Context, _ *mcp.CallToolRequest, input AlignInput) (*mcp.CallToolResult, AlignOutput, error) {
	if input.Text == "" {
		return nil, AlignOutput{}, errors.New("text is required")
	}

	segments, dropped := annotate.Align(input.Text, input.Corrections)
	return nil, AlignOutput{
		Segments: toSegmentOutputs(segments),
		Dropped:  dropped,
	}, nil
}

// toSegmentOutputs converts engine segments to the flat MCP wire shape.
func toSegmentOutputs(segments []annotate.Segment) []SegmentOutput {
	out := make([]SegmentOutput, len(segments))
	for i, seg := range segments {
		out[i] = SegmentOutput{Text: seg.Text, Annotation: seg.Annotation}
	}
	return out
}
