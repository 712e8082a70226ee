package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/genai"
)

// ExtractFieldsTimeout is the timeout for Gemini API calls.
const ExtractFieldsTimeout = 30 * time.Second

// ErrNotConfigured indicates the Gemini API key is missing.
var ErrNotConfigured = errors.New("gemini API key is required")

// ErrExtractTimeout indicates the Gemini API call timed out.
var ErrExtractTimeout = errors.New("field extraction timed out")

// ErrMissingReference indicates no payment reference ID could be extracted.
// The reference ID is the single most important field: without it the
// submission cannot be deduplicated or verified.
var ErrMissingReference = errors.New("no reference ID extracted from receipt text")

// ErrMissingField indicates one of the other required fields was empty.
var ErrMissingField = errors.New("required field missing from extraction")

// Fields contains the structured data extracted from raw receipt text.
type Fields struct {
	ReferenceID     string
	Date            time.Time
	Time            string
	Amount          decimal.Decimal
	TransactionType string
}

// fieldsResponse is the JSON structure returned by Gemini.
type fieldsResponse struct {
	ReferenceID     string `json:"reference_id"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	Amount          string `json:"amount"`
	TransactionType string `json:"transaction_type"`
}

// ExtractFields pulls the payment fields out of raw OCR text using Gemini.
// It applies a 30-second timeout to the API call. All four required fields
// (reference ID, date, time, amount) must come back non-empty.
func (c *Client) ExtractFields(ctx context.Context, rawText string) (*Fields, error) {
	if c.generator == nil {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(rawText) == "" {
		return nil, fmt.Errorf("receipt text is required")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, ExtractFieldsTimeout)
	defer cancel()

	resp, err := c.generator.GenerateContent(timeoutCtx, ModelName, []*genai.Content{
		{
			Parts: []*genai.Part{
				{Text: buildFieldsPrompt(rawText)},
			},
		},
	}, nil)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrExtractTimeout
		}
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no response from Gemini")
	}

	var textContent string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			textContent += part.Text
		}
	}

	if textContent == "" {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	return parseFieldsResponse(textContent)
}

func buildFieldsPrompt(rawText string) string {
	return fmt.Sprintf(`The following text was extracted from a mobile payment receipt screenshot.
Extract the payment fields and return ONLY a JSON object with no additional text or markdown formatting.

Required fields:
- reference_id: The unique transaction reference / transaction number
- date: The transaction date in YYYY-MM-DD format. Source dates may be written day-first (e.g. 21/11/2025); normalize them to ISO order.
- time: The transaction time in HH:MM:SS format
- amount: The amount as a numeric string (e.g. "5000.00"; negative for refunds)
- transaction_type: One of "transfer", "payment", "refund", "cashin", "cashout", or "other"

If a field cannot be determined, use an empty string.

Example response:
{"reference_id": "0012345678", "date": "2025-11-21", "time": "14:32:05", "amount": "5000.00", "transaction_type": "transfer"}

Receipt text:
%s`, rawText)
}

func parseFieldsResponse(response string) (*Fields, error) {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	var fr fieldsResponse
	if err := json.Unmarshal([]byte(response), &fr); err != nil {
		return nil, fmt.Errorf("failed to parse fields response: %w", err)
	}

	if strings.TrimSpace(fr.ReferenceID) == "" {
		return nil, ErrMissingReference
	}
	if fr.Date == "" {
		return nil, fmt.Errorf("%w: date", ErrMissingField)
	}
	if fr.Time == "" {
		return nil, fmt.Errorf("%w: time", ErrMissingField)
	}
	if fr.Amount == "" {
		return nil, fmt.Errorf("%w: amount", ErrMissingField)
	}

	date, err := normalizeDate(fr.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to parse date %q: %w", fr.Date, err)
	}

	amount, err := decimal.NewFromString(fr.Amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount %q: %w", fr.Amount, err)
	}

	return &Fields{
		ReferenceID:     strings.TrimSpace(fr.ReferenceID),
		Date:            date,
		Time:            normalizeTime(fr.Time),
		Amount:          amount.Round(2),
		TransactionType: fr.TransactionType,
	}, nil
}

// normalizeDate accepts ISO dates plus the day-first formats the model
// occasionally passes through despite the prompt.
func normalizeDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	layouts := []string{"2006-01-02", "02/01/2006", "02-01-2006", "02.01.2006", "2 Jan 2006", "Jan 2, 2006"}
	var lastErr error
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}

// normalizeTime pads HH:MM to HH:MM:SS.
func normalizeTime(s string) string {
	s = strings.TrimSpace(s)
	if len(s) == 5 && strings.Count(s, ":") == 1 {
		return s + ":00"
	}
	return s
}
