package matcher

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/receipt-matcher/internal/model"
	"github.com/sells-group/receipt-matcher/pkg/anthropic"
)

// oracleReply mirrors the JSON object the model is instructed to return.
type oracleReply struct {
	InventoryID *string `json:"inventory_id"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning"`
}

// arbitrate asks the model to pick at most one candidate from the shortlist
// and binds the reply back onto the offered candidates: an inventory id the
// model invents is discarded, and a chosen id always carries the catalog
// name we offered, never one the model echoed back.
func (m *Matcher) arbitrate(ctx context.Context, description string, candidates []model.Candidate) (model.MatchDecision, anthropic.TokenUsage) {
	var usage anthropic.TokenUsage

	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return failedDecision(description, "", "Match cancelled", eris.Wrap(err, "matcher: rate limit wait")), usage
		}
	}

	temp := 0.0
	resp, err := m.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       m.cfg.Anthropic.Model,
		MaxTokens:   m.cfg.Anthropic.MaxTokens,
		System:      anthropic.BuildCachedSystemBlocks(matchSystemPrompt),
		Messages:    []anthropic.Message{{Role: "user", Content: buildMatchPrompt(description, candidates)}},
		Temperature: &temp,
	})
	if err != nil {
		zap.L().Warn("arbitration request failed",
			zap.String("receipt_item", description),
			zap.Error(err),
		)
		return failedDecision(description, "", "AI matching failed", eris.Wrap(err, "matcher: arbitrate")), usage
	}
	usage = resp.Usage

	reply, err := parseOracleReply(extractText(resp))
	if err != nil {
		zap.L().Warn("unparseable arbitration reply",
			zap.String("receipt_item", description),
			zap.Error(err),
		)
		return failedDecision(description, "", "AI response could not be parsed", err), usage
	}

	d := model.MatchDecision{
		ReceiptItem: description,
		Confidence:  clampConfidence(reply.Confidence),
		Reasoning:   reply.Reasoning,
		Success:     true,
	}

	if reply.InventoryID != nil && *reply.InventoryID != "" {
		for _, c := range candidates {
			if c.ID == *reply.InventoryID {
				id, name := c.ID, c.Name
				d.InventoryID = &id
				d.InventoryName = &name
				break
			}
		}
		if d.InventoryID == nil {
			zap.L().Warn("model returned id outside candidate list",
				zap.String("receipt_item", description),
				zap.String("inventory_id", *reply.InventoryID),
			)
			d.Confidence = 0
			d.Reasoning = "AI returned an inventory ID that was not among the candidates"
		}
	}

	if d.InventoryID != nil {
		zap.L().Debug("match found",
			zap.String("receipt_item", description),
			zap.String("inventory_id", *d.InventoryID),
			zap.String("inventory_name", *d.InventoryName),
			zap.Int("confidence", d.Confidence),
		)
	} else {
		zap.L().Debug("no match",
			zap.String("receipt_item", description),
			zap.String("reasoning", d.Reasoning),
		)
	}

	return d, usage
}

// extractText concatenates all text content blocks of a response.
func extractText(resp *anthropic.MessageResponse) string {
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// parseOracleReply decodes the model's JSON reply. Models occasionally wrap
// the object in a one-element array; unwrap that before decoding.
func parseOracleReply(text string) (*oracleReply, error) {
	cleaned := cleanJSON(text)
	if cleaned == "" {
		return nil, eris.Errorf("matcher: no JSON found in reply: %q", truncate(text, 200))
	}

	if strings.HasPrefix(cleaned, "[") {
		var arr []oracleReply
		if err := json.Unmarshal([]byte(cleaned), &arr); err != nil {
			return nil, eris.Wrap(err, "matcher: decode reply array")
		}
		if len(arr) != 1 {
			return nil, eris.Errorf("matcher: expected one reply object, got %d", len(arr))
		}
		return &arr[0], nil
	}

	var reply oracleReply
	if err := json.Unmarshal([]byte(cleaned), &reply); err != nil {
		return nil, eris.Wrap(err, "matcher: decode reply")
	}
	return &reply, nil
}

// cleanJSON strips markdown code fences and any prose surrounding the first
// JSON value in the text. Returns "" when no object or array is present.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if i := strings.LastIndex(text, "```"); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
	}

	objStart := strings.Index(text, "{")
	arrStart := strings.Index(text, "[")
	start := objStart
	end := strings.LastIndex(text, "}")
	if arrStart >= 0 && (objStart < 0 || arrStart < objStart) {
		start = arrStart
		end = strings.LastIndex(text, "]")
	}
	if start < 0 || end < start {
		return ""
	}
	return text[start : end+1]
}

// clampConfidence normalizes the model's confidence to an int in [0, 100].
func clampConfidence(c float64) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return int(c)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
