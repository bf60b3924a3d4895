package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const devicesJSON = `{
  "customerGid": 42,
  "email": "user@example.com",
  "devices": [
    {
      "deviceGid": 1001,
      "model": "VUE002",
      "channels": [
        {"deviceGid": 1001, "name": "Main", "channelNum": "1,2,3"},
        {"deviceGid": 1001, "name": "Dryer", "channelNum": "4"}
      ],
      "devices": [
        {
          "deviceGid": 2002,
          "model": "SSO001",
          "channels": [{"deviceGid": 2002, "name": "Kettle", "channelNum": "1,2,3"}]
        }
      ]
    }
  ]
}`

const usageJSON = `{
  "deviceListUsages": {
    "instant": "2026-10-18T12:00:00Z",
    "scale": "1S",
    "energyUnit": "KilowattHours",
    "devices": [
      {
        "deviceGid": 1001,
        "channelUsages": [
          {"name": "Main", "usage": 0.0005, "deviceGid": 1001, "channelNum": "1,2,3",
           "nestedDevices": [
             {"deviceGid": 2002, "channelUsages": [{"name": "Kettle", "usage": 0.00001, "deviceGid": 2002, "channelNum": "1,2,3"}]}
           ]},
          {"name": "Dryer", "usage": null, "deviceGid": 1001, "channelNum": "4"}
        ]
      }
    ]
  }
}`

type fakeCloud struct {
	server        *httptest.Server
	passwordAuths int32
	refreshAuths  int32
	rejectAuth    bool
	lastQuery     atomic.Value
}

func newFakeCloud(t *testing.T) *fakeCloud {
	f := &fakeCloud{}
	mux := http.NewServeMux()
	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AWSCognitoIdentityProviderService.InitiateAuth", r.Header.Get("X-Amz-Target"))
		body, _ := io.ReadAll(r.Body)
		var req initiateAuthRequest
		require.NoError(t, json.Unmarshal(body, &req))

		if f.rejectAuth {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"__type":"NotAuthorizedException","message":"Incorrect username or password."}`))
			return
		}

		var resp initiateAuthResponse
		resp.AuthenticationResult.ExpiresIn = 3600
		switch req.AuthFlow {
		case authFlowPassword:
			atomic.AddInt32(&f.passwordAuths, 1)
			resp.AuthenticationResult.IDToken = "id-password"
			resp.AuthenticationResult.RefreshToken = "refresh-1"
		case authFlowRefresh:
			atomic.AddInt32(&f.refreshAuths, 1)
			resp.AuthenticationResult.IDToken = "id-refreshed"
		}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/customers/devices", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("authtoken") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(devicesJSON))
	})
	mux.HandleFunc("/AppAPI", func(w http.ResponseWriter, r *http.Request) {
		f.lastQuery.Store(r.URL.Query())
		w.Write([]byte(usageJSON))
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeCloud) client() *Client {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewClient(Options{
		APIURL:     f.server.URL,
		CognitoURL: f.server.URL + "/auth",
		ClientID:   "test-client",
		Limiter:    rate.NewLimiter(rate.Inf, 1),
	}, logger)
}

func TestLoginPersistsAndReusesTokens(t *testing.T) {
	cloud := newFakeCloud(t)
	path := filepath.Join(t.TempDir(), "keys.json")
	creds := Credentials{Username: "user@example.com", Password: "secret", TokenStoragePath: path}

	client := cloud.client()
	require.NoError(t, client.Login(context.Background(), creds))
	require.NoError(t, client.Login(context.Background(), creds))
	assert.Equal(t, int32(1), atomic.LoadInt32(&cloud.passwordAuths))

	// a fresh client picks the stored tokens up from disk
	other := cloud.client()
	require.NoError(t, other.Login(context.Background(), creds))
	assert.Equal(t, int32(1), atomic.LoadInt32(&cloud.passwordAuths))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var stored Tokens
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, "id-password", stored.IDToken)
	assert.Equal(t, "refresh-1", stored.RefreshToken)
	assert.Equal(t, "user@example.com", stored.Username)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoginRefreshesExpiredToken(t *testing.T) {
	cloud := newFakeCloud(t)
	path := filepath.Join(t.TempDir(), "keys.json")
	require.NoError(t, saveTokens(path, &Tokens{
		Username:     "user@example.com",
		IDToken:      "id-old",
		RefreshToken: "refresh-old",
		ExpiresAt:    time.Now().Add(-time.Hour),
	}))

	client := cloud.client()
	err := client.Login(context.Background(), Credentials{Username: "user@example.com", Password: "secret", TokenStoragePath: path})
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&cloud.refreshAuths))
	assert.Equal(t, int32(0), atomic.LoadInt32(&cloud.passwordAuths))

	stored, err := loadTokens(path)
	require.NoError(t, err)
	assert.Equal(t, "id-refreshed", stored.IDToken)
	assert.Equal(t, "refresh-old", stored.RefreshToken)
}

func TestLoginIgnoresTokensOfOtherUser(t *testing.T) {
	cloud := newFakeCloud(t)
	path := filepath.Join(t.TempDir(), "keys.json")
	require.NoError(t, saveTokens(path, &Tokens{
		Username:  "someone@else.com",
		IDToken:   "id-other",
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	client := cloud.client()
	require.NoError(t, client.Login(context.Background(), Credentials{Username: "user@example.com", Password: "secret", TokenStoragePath: path}))
	assert.Equal(t, int32(1), atomic.LoadInt32(&cloud.passwordAuths))
}

func TestLoginRejected(t *testing.T) {
	cloud := newFakeCloud(t)
	cloud.rejectAuth = true

	client := cloud.client()
	err := client.Login(context.Background(), Credentials{Username: "user@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthRejected)
	assert.Contains(t, err.Error(), "NotAuthorizedException")
}

func TestGetDevicesRequiresLogin(t *testing.T) {
	cloud := newFakeCloud(t)

	_, err := cloud.client().GetDevices(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestGetDevices(t *testing.T) {
	cloud := newFakeCloud(t)
	client := cloud.client()
	require.NoError(t, client.Login(context.Background(), Credentials{Username: "u", Password: "p"}))

	devices, err := client.GetDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, int64(1001), devices[0].DeviceGid)
	require.Len(t, devices[0].Channels, 2)
	assert.Equal(t, "Dryer", devices[0].Channels[1].Name)
	assert.Equal(t, "4", devices[0].Channels[1].ChannelNum)
	require.Len(t, devices[0].Devices, 1)
	assert.Equal(t, "Kettle", devices[0].Devices[0].Channels[0].Name)
}

func TestGetDeviceListUsage(t *testing.T) {
	cloud := newFakeCloud(t)
	client := cloud.client()
	require.NoError(t, client.Login(context.Background(), Credentials{Username: "u", Password: "p"}))

	usages, err := client.GetDeviceListUsage(context.Background(), 1001)
	require.NoError(t, err)

	query := cloud.lastQuery.Load().(url.Values)
	assert.Equal(t, []string{"getDeviceListUsages"}, query["apiMethod"])
	assert.Equal(t, []string{"1001"}, query["deviceGids"])
	assert.Equal(t, []string{UsageScale}, query["scale"])
	assert.Equal(t, []string{EnergyUnit}, query["energyUnit"])

	require.Contains(t, usages, int64(1001))
	assert.InDelta(t, 0.0005, usages[1001].ChannelUsages["1,2,3"].Usage, 1e-12)
	// null usage decodes as zero
	assert.Equal(t, 0.0, usages[1001].ChannelUsages["4"].Usage)

	require.Contains(t, usages, int64(2002))
	assert.InDelta(t, 0.00001, usages[2002].ChannelUsages["1,2,3"].Usage, 1e-12)
}

func TestGetErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(Options{APIURL: server.URL, Limiter: rate.NewLimiter(rate.Inf, 1)}, logrus.New())
	client.tokens = &Tokens{IDToken: "id"}

	_, err := client.GetDevices(context.Background())
	assert.ErrorIs(t, err, ErrAPIStatus)
}
