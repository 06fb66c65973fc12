package carrier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/freightdesk-ai/platform/pkg/breaker"
	"github.com/freightdesk-ai/platform/pkg/common/logger"
	"github.com/freightdesk-ai/platform/pkg/common/models"
	"github.com/freightdesk-ai/platform/pkg/gateway/httpclient"
	"github.com/freightdesk-ai/platform/pkg/observability/metrics"
	"github.com/redis/go-redis/v9"
)

// ErrNoFMCSARecord means the federal registry has no carrier under the
// DOT number.
var ErrNoFMCSARecord = errors.New("no FMCSA record for DOT number")

const defaultFMCSABaseURL = "https://mobile.fmcsa.dot.gov/qc/services"

// FMCSAClient pulls carrier snapshots from the federal QCMobile API.
// Lookups are cached in Redis for a day; carrier records change slowly
// and the API is rate limited. A circuit breaker sheds lookups while
// the registry is down.
type FMCSAClient struct {
	httpClient *http.Client
	baseURL    string
	webKey     string
	cache      *redis.Client
	ttl        time.Duration
	cb         *breaker.Breaker
}

func NewFMCSAClient(baseURL, webKey string, cache *redis.Client) *FMCSAClient {
	if baseURL == "" {
		baseURL = defaultFMCSABaseURL
	}
	return &FMCSAClient{
		httpClient: httpclient.New(10 * time.Second),
		baseURL:    strings.TrimRight(baseURL, "/"),
		webKey:     webKey,
		cache:      cache,
		ttl:        24 * time.Hour,
		cb: breaker.New("fmcsa", breaker.Config{
			Timeout:          2 * time.Minute,
			FailureThreshold: 5,
			SuccessThreshold: 1,
			Logger:           logger.Log,
		}),
	}
}

// carrierRecord is the slice of the QCMobile response we read.
type carrierRecord struct {
	Content struct {
		Carrier struct {
			LegalName        string `json:"legalName"`
			DBAName          string `json:"dbaName"`
			AllowedToOperate string `json:"allowedToOperate"`
			SafetyRating     string `json:"safetyRating"`
			TotalPowerUnits  int    `json:"totalPowerUnits"`
			TotalDrivers     int    `json:"totalDrivers"`
			OOSDate          string `json:"oosDate"`
		} `json:"carrier"`
	} `json:"content"`
}

// Lookup fetches the carrier's federal snapshot by DOT number.
func (c *FMCSAClient) Lookup(ctx context.Context, dotNumber string) (models.FMCSASnapshot, error) {
	dotNumber = strings.TrimSpace(dotNumber)
	if dotNumber == "" {
		return models.FMCSASnapshot{}, errors.New("dot number is required")
	}

	if snapshot, ok := c.cached(ctx, dotNumber); ok {
		metrics.Registry().FMCSALookups.WithLabelValues("cached").Inc()
		return snapshot, nil
	}

	endpoint := fmt.Sprintf("%s/carriers/%s?webKey=%s", c.baseURL, url.PathEscape(dotNumber), url.QueryEscape(c.webKey))

	var record carrierRecord
	var notFound bool
	err := c.cb.Execute(ctx, func() error {
		return httpclient.Retry(ctx, 3, 200*time.Millisecond, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return err
			}
			req.Header.Set("Accept", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusNotFound {
				notFound = true
				return nil
			}
			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				return fmt.Errorf("fmcsa returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			}
			return json.NewDecoder(resp.Body).Decode(&record)
		})
	})
	if err != nil {
		metrics.Registry().FMCSALookups.WithLabelValues("error").Inc()
		return models.FMCSASnapshot{}, fmt.Errorf("fmcsa lookup failed: %w", err)
	}
	if notFound || record.Content.Carrier.LegalName == "" {
		metrics.Registry().FMCSALookups.WithLabelValues("not_found").Inc()
		return models.FMCSASnapshot{}, ErrNoFMCSARecord
	}

	carrier := record.Content.Carrier
	snapshot := models.FMCSASnapshot{
		DOTNumber:       dotNumber,
		LegalName:       carrier.LegalName,
		DBAName:         carrier.DBAName,
		OperatingStatus: operatingStatus(carrier.AllowedToOperate),
		SafetyRating:    safetyRating(carrier.SafetyRating),
		PowerUnits:      carrier.TotalPowerUnits,
		Drivers:         carrier.TotalDrivers,
		OutOfService:    carrier.OOSDate != "",
		RetrievedAt:     time.Now().UTC(),
	}

	c.store(ctx, dotNumber, snapshot)
	metrics.Registry().FMCSALookups.WithLabelValues("ok").Inc()
	return snapshot, nil
}

func (c *FMCSAClient) cached(ctx context.Context, dotNumber string) (models.FMCSASnapshot, bool) {
	if c.cache == nil {
		return models.FMCSASnapshot{}, false
	}
	raw, err := c.cache.Get(ctx, fmcsaKey(dotNumber)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Log.WithError(err).Warn("Failed to read FMCSA cache")
		}
		return models.FMCSASnapshot{}, false
	}
	var snapshot models.FMCSASnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return models.FMCSASnapshot{}, false
	}
	return snapshot, true
}

func (c *FMCSAClient) store(ctx context.Context, dotNumber string, snapshot models.FMCSASnapshot) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, fmcsaKey(dotNumber), raw, c.ttl).Err(); err != nil {
		logger.Log.WithError(err).Warn("Failed to write FMCSA cache")
	}
}

func fmcsaKey(dotNumber string) string {
	return fmt.Sprintf("fmcsa:dot:%s", dotNumber)
}

func operatingStatus(allowedToOperate string) string {
	if strings.EqualFold(allowedToOperate, "Y") {
		return "AUTHORIZED"
	}
	return "NOT AUTHORIZED"
}

// safetyRating expands the registry's single-letter codes.
func safetyRating(code string) string {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "S":
		return "Satisfactory"
	case "C":
		return "Conditional"
	case "U":
		return "Unsatisfactory"
	case "":
		return ""
	default:
		return code
	}
}
