// Package api is a client for the Emporia Vue cloud API.
//
// Only the calls needed to read a channel's instantaneous usage are
// implemented: login, device listing and device-list usage.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/tejusbharadwaj/vueswitch/internal/models"
)

const (
	requestTimeout = 30 * time.Second

	// UsageScale is the reporting window requested for usage readings.
	// Usage values are kWh consumed over one second.
	UsageScale = "1S"
	EnergyUnit = "KilowattHours"
)

var (
	ErrAuthRequest  = errors.New("error making auth request")
	ErrAuthRejected = errors.New("authentication rejected")
	ErrNotLoggedIn  = errors.New("not logged in")
	ErrAPIRequest   = errors.New("error making API request")
	ErrAPIStatus    = errors.New("error status from API")
)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	APIURL     string
	CognitoURL string
	ClientID   string
	HTTPClient *http.Client
	Limiter    *rate.Limiter
}

// Client talks to the Emporia cloud. It is safe for concurrent use.
type Client struct {
	apiURL     string
	cognitoURL string
	clientID   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logrus.Logger
	now        func() time.Time

	mu     sync.Mutex
	tokens *Tokens
}

func NewClient(opts Options, logger *logrus.Logger) *Client {
	c := &Client{
		apiURL:     strings.TrimRight(opts.APIURL, "/"),
		cognitoURL: opts.CognitoURL,
		clientID:   opts.ClientID,
		httpClient: opts.HTTPClient,
		limiter:    opts.Limiter,
		logger:     logger,
		now:        time.Now,
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.limiter == nil {
		// the cloud API throttles aggressive clients
		c.limiter = rate.NewLimiter(rate.Every(time.Second), 3)
	}
	return c
}

type devicesResponse struct {
	CustomerGid int64           `json:"customerGid"`
	Email       string          `json:"email"`
	Devices     []models.Device `json:"devices"`
}

type channelUsageResponse struct {
	models.ChannelUsage
	NestedDevices []deviceUsageResponse `json:"nestedDevices"`
}

type deviceUsageResponse struct {
	DeviceGid     int64                  `json:"deviceGid"`
	ChannelUsages []channelUsageResponse `json:"channelUsages"`
}

type deviceListUsagesResponse struct {
	DeviceListUsages struct {
		Instant    string                `json:"instant"`
		Scale      string                `json:"scale"`
		EnergyUnit string                `json:"energyUnit"`
		Devices    []deviceUsageResponse `json:"devices"`
	} `json:"deviceListUsages"`
}

// GetDevices lists the account's devices with their channels.
func (c *Client) GetDevices(ctx context.Context) ([]models.Device, error) {
	query := url.Values{}
	query.Set("detailed", "true")
	query.Set("hierarchy", "true")

	var resp devicesResponse
	if err := c.get(ctx, "/customers/devices", query, &resp); err != nil {
		return nil, err
	}
	return resp.Devices, nil
}

// GetDeviceListUsage returns the latest one-second usage of every channel
// of the given devices, keyed by device gid. Nested devices reported under
// a channel get their own entry.
func (c *Client) GetDeviceListUsage(ctx context.Context, deviceGids ...int64) (map[int64]models.DeviceUsage, error) {
	gids := make([]string, len(deviceGids))
	for i, gid := range deviceGids {
		gids[i] = strconv.FormatInt(gid, 10)
	}

	query := url.Values{}
	query.Set("apiMethod", "getDeviceListUsages")
	query.Set("deviceGids", strings.Join(gids, "+"))
	query.Set("instant", c.now().UTC().Format("2006-01-02T15:04:05Z"))
	query.Set("scale", UsageScale)
	query.Set("energyUnit", EnergyUnit)

	var resp deviceListUsagesResponse
	if err := c.get(ctx, "/AppAPI", query, &resp); err != nil {
		return nil, err
	}

	usages := make(map[int64]models.DeviceUsage)
	for _, device := range resp.DeviceListUsages.Devices {
		collectUsage(usages, device)
	}
	return usages, nil
}

func collectUsage(usages map[int64]models.DeviceUsage, device deviceUsageResponse) {
	entry, ok := usages[device.DeviceGid]
	if !ok {
		entry = models.DeviceUsage{
			DeviceGid:     device.DeviceGid,
			ChannelUsages: make(map[string]models.ChannelUsage),
		}
		usages[device.DeviceGid] = entry
	}
	for _, ch := range device.ChannelUsages {
		entry.ChannelUsages[ch.ChannelNum] = ch.ChannelUsage
		for _, nested := range ch.NestedDevices {
			collectUsage(usages, nested)
		}
	}
}

func (c *Client) idToken() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokens == nil || c.tokens.IDToken == "" {
		return "", ErrNotLoggedIn
	}
	return c.tokens.IDToken, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	token, err := c.idToken()
	if err != nil {
		return err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrAPIRequest, err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	endpoint := c.apiURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAPIRequest, err)
	}
	req.Header.Set("authtoken", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: got %d", ErrAPIStatus, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}
	return nil
}
