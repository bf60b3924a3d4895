package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const (
	authFlowPassword = "USER_PASSWORD_AUTH"
	authFlowRefresh  = "REFRESH_TOKEN_AUTH"

	// tokens this close to expiry are refreshed before use
	tokenExpirySkew = time.Minute
)

// Credentials identify the Emporia account and where its tokens are kept
// between logins.
type Credentials struct {
	Username         string
	Password         string
	TokenStoragePath string
}

// Tokens is the on-disk token record. Field names follow the keys.json
// layout used by other Emporia clients so existing files can be reused.
type Tokens struct {
	Username     string    `json:"username"`
	IDToken      string    `json:"id_token"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

func (t *Tokens) valid(now time.Time) bool {
	return t != nil && t.IDToken != "" && now.Add(tokenExpirySkew).Before(t.ExpiresAt)
}

type initiateAuthRequest struct {
	AuthFlow       string            `json:"AuthFlow"`
	ClientID       string            `json:"ClientId"`
	AuthParameters map[string]string `json:"AuthParameters"`
}

type initiateAuthResponse struct {
	AuthenticationResult struct {
		AccessToken  string `json:"AccessToken"`
		ExpiresIn    int    `json:"ExpiresIn"`
		IDToken      string `json:"IdToken"`
		RefreshToken string `json:"RefreshToken"`
	} `json:"AuthenticationResult"`
}

type cognitoError struct {
	Type    string `json:"__type"`
	Message string `json:"message"`
}

// Login authenticates against the Emporia identity provider. Tokens from
// the storage file or a previous call are reused while they are valid; an
// expired id token is refreshed before falling back to a password login.
func (c *Client) Login(ctx context.Context, creds Credentials) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tokens := c.tokens
	if tokens == nil || tokens.Username != creds.Username {
		stored, err := loadTokens(creds.TokenStoragePath)
		if err != nil {
			c.logger.WithError(err).Warn("Ignoring unreadable token storage file")
		}
		tokens = nil
		if stored != nil && stored.Username == creds.Username {
			tokens = stored
		}
	}

	if tokens.valid(c.now()) {
		c.tokens = tokens
		return nil
	}

	var (
		result *initiateAuthResponse
		err    error
	)
	if tokens != nil && tokens.RefreshToken != "" {
		result, err = c.initiateAuth(ctx, authFlowRefresh, map[string]string{
			"REFRESH_TOKEN": tokens.RefreshToken,
		})
		if err != nil {
			c.logger.WithError(err).Warn("Token refresh failed, logging in with password")
			result = nil
		}
	}
	if result == nil {
		result, err = c.initiateAuth(ctx, authFlowPassword, map[string]string{
			"USERNAME": creds.Username,
			"PASSWORD": creds.Password,
		})
		if err != nil {
			return err
		}
	}

	fresh := &Tokens{
		Username:     creds.Username,
		IDToken:      result.AuthenticationResult.IDToken,
		AccessToken:  result.AuthenticationResult.AccessToken,
		RefreshToken: result.AuthenticationResult.RefreshToken,
		ExpiresAt:    c.now().Add(time.Duration(result.AuthenticationResult.ExpiresIn) * time.Second),
	}
	// refresh responses do not rotate the refresh token
	if fresh.RefreshToken == "" && tokens != nil {
		fresh.RefreshToken = tokens.RefreshToken
	}
	c.tokens = fresh

	if err := saveTokens(creds.TokenStoragePath, fresh); err != nil {
		c.logger.WithError(err).WithField("path", creds.TokenStoragePath).Warn("Failed to persist tokens")
	}
	return nil
}

func (c *Client) initiateAuth(ctx context.Context, flow string, params map[string]string) (*initiateAuthResponse, error) {
	body, err := json.Marshal(initiateAuthRequest{
		AuthFlow:       flow,
		ClientID:       c.clientID,
		AuthParameters: params,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthRequest, err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthRequest, err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cognitoURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthRequest, err)
	}
	req.Header.Set("Content-Type", "application/x-amz-json-1.1")
	req.Header.Set("X-Amz-Target", "AWSCognitoIdentityProviderService.InitiateAuth")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		var cerr cognitoError
		if json.Unmarshal(respBody, &cerr) == nil && cerr.Type != "" {
			return nil, fmt.Errorf("%w: %s: %s", ErrAuthRejected, cerr.Type, cerr.Message)
		}
		return nil, fmt.Errorf("%w: got %d", ErrAuthRejected, resp.StatusCode)
	}

	var out initiateAuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode auth response: %v", err)
	}
	if out.AuthenticationResult.IDToken == "" {
		return nil, fmt.Errorf("%w: no id token returned", ErrAuthRejected)
	}
	return &out, nil
}

func loadTokens(path string) (*Tokens, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading token file: %w", err)
	}

	var tokens Tokens
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("parsing token file: %w", err)
	}
	return &tokens, nil
}

func saveTokens(path string, tokens *Tokens) error {
	if path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating token directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling tokens: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}
