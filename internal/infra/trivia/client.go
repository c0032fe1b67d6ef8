package trivia

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"time"

	"trivia-session-service/internal/domain"
)

// DefaultBaseURL targets the Open Trivia DB music category, multiple choice.
const DefaultBaseURL = "https://opentdb.com/api.php?category=12&type=multiple"

// Client fetches question sets from an Open Trivia DB compatible HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type apiResponse struct {
	ResponseCode int `json:"response_code"`
	Results      []struct {
		Question         string   `json:"question"`
		CorrectAnswer    string   `json:"correct_answer"`
		IncorrectAnswers []string `json:"incorrect_answers"`
	} `json:"results"`
}

// Fetch requests count questions. The API may return fewer than asked for;
// that is passed through, not treated as an error here.
func (c *Client) Fetch(ctx context.Context, count int) ([]domain.Question, error) {
	url := c.baseURL + "&amount=" + strconv.Itoa(count)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build trivia request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch trivia: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trivia api returned status %d", resp.StatusCode)
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode trivia response: %w", err)
	}
	if parsed.ResponseCode != 0 {
		return nil, fmt.Errorf("trivia api response code %d", parsed.ResponseCode)
	}

	questions := make([]domain.Question, 0, len(parsed.Results))
	for _, result := range parsed.Results {
		incorrect := make([]string, 0, len(result.IncorrectAnswers))
		for _, answer := range result.IncorrectAnswers {
			incorrect = append(incorrect, html.UnescapeString(answer))
		}
		questions = append(questions, domain.Question{
			Text:             html.UnescapeString(result.Question),
			CorrectAnswer:    html.UnescapeString(result.CorrectAnswer),
			IncorrectAnswers: incorrect,
		})
	}
	return questions, nil
}
