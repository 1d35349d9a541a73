// Package auth obtains and stores Google credentials. The saved token's ID
// token is the bearer credential for the REST API, and the token itself
// authorizes the Firestore client.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

const (
	credentialsFile = "credentials.json"
	datastoreScope  = "https://www.googleapis.com/auth/datastore"
	redirectURL     = "urn:ietf:wg:oauth:2.0:oob" // For desktop app flow
)

var scopes = []string{"openid", "email", "profile", datastoreScope}

// OAuthConfig reads credentials and returns an OAuth2 config.
// It prioritizes the given client id and secret over a local credentials.json file.
func OAuthConfig(clientID, clientSecret string) (*oauth2.Config, error) {
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       scopes,
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil, fmt.Errorf("credentials.json not found. Please provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars or place credentials.json in the working directory")
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = redirectURL
	return config, nil
}

// TokenFromWeb exchanges an authorization code for a token.
func TokenFromWeb(ctx context.Context, config *oauth2.Config, authCode string) (*oauth2.Token, error) {
	return config.Exchange(ctx, authCode)
}

// TokenFile returns the token file name for an account.
func TokenFile(dir, account string) string {
	return filepath.Join(dir, "token-"+account+".json")
}

// SaveToken saves a token to a file path, readable by the owner only.
// The ID token is kept alongside the OAuth fields.
func SaveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(storedToken{Token: token, IDToken: IDToken(token)})
}

type storedToken struct {
	*oauth2.Token
	IDToken string `json:"id_token,omitempty"`
}

// LoadToken reads a token saved by SaveToken.
func LoadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st := storedToken{Token: &oauth2.Token{}}
	if err := json.NewDecoder(f).Decode(&st); err != nil {
		return nil, fmt.Errorf("failed to decode token file %s: %w", path, err)
	}
	tok := st.Token
	if st.IDToken != "" {
		tok = tok.WithExtra(map[string]any{"id_token": st.IDToken})
	}
	return tok, nil
}

// IDToken extracts the OpenID Connect ID token from a token, or "".
func IDToken(token *oauth2.Token) string {
	if token == nil {
		return ""
	}
	if s, ok := token.Extra("id_token").(string); ok {
		return s
	}
	return ""
}

// ClientOption authorizes Google API clients with a saved token, refreshing it as needed.
func ClientOption(ctx context.Context, config *oauth2.Config, token *oauth2.Token) option.ClientOption {
	return option.WithTokenSource(config.TokenSource(ctx, token))
}

// Accounts lists the account names with a token file in dir.
func Accounts(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var accounts []string
	for _, file := range files {
		name := file.Name()
		if strings.HasPrefix(name, "token-") && strings.HasSuffix(name, ".json") {
			accounts = append(accounts, strings.TrimSuffix(strings.TrimPrefix(name, "token-"), ".json"))
		}
	}
	return accounts, nil
}
