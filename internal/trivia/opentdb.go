// internal/trivia/opentdb.go
package trivia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/valyala/fastrand"

	"github.com/quizwire/quizwire/internal/models"
)

// Upstream failure taxonomy, keyed to OpenTDB response codes. All of these
// are recoverable at the Service layer via the fallback set.
var (
	ErrNoResults        = errors.New("not enough questions available for the requested criteria")
	ErrInvalidParameter = errors.New("question source rejected the request parameters")
	ErrRateLimited      = errors.New("question source is rate limited")
)

const (
	codeSuccess = iota
	codeNoResults
	codeInvalidParameter
	codeTokenNotFound
	codeTokenEmpty
	codeRateLimited
)

// Client talks to an Open Trivia Database compatible API. It maintains a
// session token so consecutive batches for long-lived lobbies do not repeat
// questions; token upkeep is best effort and never blocks a fetch.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Logger  *logrus.Logger

	token string // guarded by the single-flight nature of fetches per lobby
}

func NewClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: timeout},
		Logger:  logger,
	}
}

type apiQuestion struct {
	Category         string   `json:"category"`
	Type             string   `json:"type"`
	Difficulty       string   `json:"difficulty"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

type apiResponse struct {
	ResponseCode int           `json:"response_code"`
	Results      []apiQuestion `json:"results"`
}

type tokenResponse struct {
	ResponseCode int    `json:"response_code"`
	Token        string `json:"token"`
}

// Questions fetches one batch. Token expiry and exhaustion are handled
// in-place with a bounded number of retries; everything else is returned
// for the caller to fall back on.
func (c *Client) Questions(ctx context.Context, req Request) ([]models.Question, error) {
	if c.token == "" {
		if err := c.requestToken(ctx); err != nil {
			c.Logger.WithError(err).Warn("session token unavailable, fetching without one")
		}
	}

	for attempt := 0; attempt < 3; attempt++ {
		var resp apiResponse
		if err := c.getJSON(ctx, c.fetchURL(req), &resp); err != nil {
			return nil, err
		}

		switch resp.ResponseCode {
		case codeSuccess:
			return decodeBatch(resp.Results)
		case codeNoResults:
			return nil, ErrNoResults
		case codeInvalidParameter:
			return nil, ErrInvalidParameter
		case codeTokenNotFound:
			c.Logger.Warn("session token expired, requesting a new one")
			if err := c.requestToken(ctx); err != nil {
				return nil, err
			}
		case codeTokenEmpty:
			c.Logger.Warn("session token exhausted its question pool, resetting")
			if err := c.resetToken(ctx); err != nil {
				return nil, err
			}
		case codeRateLimited:
			return nil, ErrRateLimited
		default:
			return nil, fmt.Errorf("unexpected response code %d", resp.ResponseCode)
		}
	}
	return nil, errors.New("token retries exhausted")
}

// fetchURL builds the api.php query. Text comes back RFC 3986 encoded so
// special characters survive the JSON transport. When several categories
// are selected one is picked at random per batch, which is the variety the
// upstream's single-category parameter allows.
func (c *Client) fetchURL(req Request) string {
	v := url.Values{}
	v.Set("amount", strconv.Itoa(req.Amount))
	v.Set("encode", "url3986")
	if req.Difficulty != "" {
		v.Set("difficulty", req.Difficulty)
	}
	if len(req.Categories) > 0 {
		pick := req.Categories[fastrand.Uint32n(uint32(len(req.Categories)))]
		v.Set("category", strconv.Itoa(pick))
	}
	if c.token != "" {
		v.Set("token", c.token)
	}
	return c.BaseURL + "/api.php?" + v.Encode()
}

func (c *Client) requestToken(ctx context.Context) error {
	var resp tokenResponse
	if err := c.getJSON(ctx, c.BaseURL+"/api_token.php?command=request", &resp); err != nil {
		return err
	}
	if resp.ResponseCode != codeSuccess {
		return fmt.Errorf("token request failed with code %d", resp.ResponseCode)
	}
	c.token = resp.Token
	return nil
}

func (c *Client) resetToken(ctx context.Context) error {
	if c.token == "" {
		return c.requestToken(ctx)
	}
	var resp tokenResponse
	u := c.BaseURL + "/api_token.php?command=reset&token=" + url.QueryEscape(c.token)
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return err
	}
	if resp.ResponseCode != codeSuccess {
		return fmt.Errorf("token reset failed with code %d", resp.ResponseCode)
	}
	if resp.Token != "" {
		c.token = resp.Token
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("question source returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// decodeBatch turns raw upstream questions into the played shape: text
// unescaped, answers shuffled, correctIndex tracking the true answer
// through the shuffle.
func decodeBatch(raw []apiQuestion) ([]models.Question, error) {
	out := make([]models.Question, 0, len(raw))
	for _, rq := range raw {
		q, err := decodeQuestion(rq)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

func decodeQuestion(rq apiQuestion) (models.Question, error) {
	text, err := url.QueryUnescape(rq.Question)
	if err != nil {
		return models.Question{}, fmt.Errorf("decode question text: %w", err)
	}
	correct, err := url.QueryUnescape(rq.CorrectAnswer)
	if err != nil {
		return models.Question{}, fmt.Errorf("decode correct answer: %w", err)
	}

	answers := make([]string, 0, len(rq.IncorrectAnswers)+1)
	for _, a := range rq.IncorrectAnswers {
		decoded, err := url.QueryUnescape(a)
		if err != nil {
			return models.Question{}, fmt.Errorf("decode answer: %w", err)
		}
		answers = append(answers, decoded)
	}
	answers = append(answers, correct)

	// Fisher-Yates, tracking where the correct answer lands. Tracking by
	// position, not string equality, tolerates duplicate answer text.
	correctIndex := len(answers) - 1
	for i := len(answers) - 1; i > 0; i-- {
		j := int(fastrand.Uint32n(uint32(i + 1)))
		answers[i], answers[j] = answers[j], answers[i]
		switch correctIndex {
		case i:
			correctIndex = j
		case j:
			correctIndex = i
		}
	}

	category, err := url.QueryUnescape(rq.Category)
	if err != nil {
		return models.Question{}, fmt.Errorf("decode category: %w", err)
	}
	difficulty, err := url.QueryUnescape(rq.Difficulty)
	if err != nil {
		return models.Question{}, fmt.Errorf("decode difficulty: %w", err)
	}

	return models.Question{
		Text:         text,
		Answers:      answers,
		CorrectIndex: correctIndex,
		Category:     category,
		Difficulty:   difficulty,
		Type:         rq.Type,
	}, nil
}
