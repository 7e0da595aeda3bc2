package matsuri

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"strconv"
	"time"

	models "github.com/alceccentric/mltd-borderbot/models"

	resty "github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	BASE_URL            = "https://otomestorm.anzu.work"
	DEFAULT_TIMEOUT     = 20 * time.Second
	SPECIAL_TOKEN_PARAM = "special_token"
)

var (
	ErrEventListUnavailable = errors.New("event list unavailable")
	ErrEventNotFound        = errors.New("event not found")
	ErrNoBorderForEvent     = errors.New("event has no border")
	ErrFetchFailed          = errors.New("border fetch failed")
)

// Interface for the ranking API client.
type MatsuriClient interface {
	GetEvents(ctx context.Context) (models.EventsResponse, error)
	GetEventPointLogs(ctx context.Context, eventId int) (models.RankingResponse, error)
}

type MatsurihiMeClient struct {
	baseUrl     string
	secretToken string
	httpClient  *resty.Client
}

// NewMatsurihiMeClient retries 429 and 5xx responses up to 3 times. Every
// attempt is bounded by timeout.
func NewMatsurihiMeClient(baseUrl, secretToken string, timeout time.Duration) *MatsurihiMeClient {
	if timeout <= 0 {
		timeout = DEFAULT_TIMEOUT
	}
	httpClient := resty.New()
	httpClient.SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(2 * time.Second).
		SetRetryMaxWaitTime(30 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if r == nil {
				return false
			}
			return r.StatusCode() == 429 || r.StatusCode() == 500 ||
				r.StatusCode() >= 502 && r.StatusCode() <= 504
		})
	return &MatsurihiMeClient{
		baseUrl:     baseUrl,
		secretToken: secretToken,
		httpClient:  httpClient,
	}
}

// GetEvents retrieves every event the API knows about, in publication order.
func (m *MatsurihiMeClient) GetEvents(ctx context.Context) (models.EventsResponse, error) {
	url := m.baseUrl + "/events"

	var events models.EventsResponse

	if err := m.sendGetRequest(ctx, url, map[string]string{}, map[string]string{}, &events); err != nil {
		return models.EventsResponse{}, err
	}

	return events, nil
}

// GetEventPointLogs retrieves the event point border logs of an event.
// The logs are ordered chronologically, oldest first.
func (m *MatsurihiMeClient) GetEventPointLogs(ctx context.Context, eventId int) (models.RankingResponse, error) {
	url := m.baseUrl + "/events/" + strconv.Itoa(eventId) + "/rankings/event_point"

	params := make(map[string]string)
	if m.secretToken != "" {
		params[SPECIAL_TOKEN_PARAM] = m.secretToken
	}

	var ranking models.RankingResponse

	if err := m.sendGetRequest(ctx, url, params, map[string]string{}, &ranking); err != nil {
		return models.RankingResponse{}, err
	}

	return ranking, nil
}

func (m *MatsurihiMeClient) sendGetRequest(
	ctx context.Context,
	url string,
	params map[string]string,
	headers map[string]string,
	v interface{},
) error {
	var defaultHeaders = map[string]string{
		"Accept": "application/json",
	}

	if headers == nil {
		headers = make(map[string]string)
	}

	maps.Copy(headers, defaultHeaders)

	logrus.Debug("Sending GET request on url: " + url)

	resp, err := m.httpClient.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetHeaders(headers).
		Get(url)

	if err != nil {
		return err
	}

	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("sending GET request on url %s returned %d", url, resp.StatusCode())
	}

	if err := json.Unmarshal(resp.Body(), v); err != nil {
		return fmt.Errorf("decoding response of %s: %w", url, err)
	}

	return nil
}
