// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files
// and from a dotenv file. In the directory each file is one secret: the filename is the
// key name and the file contents (trimmed) are the value. In a dotenv file the variable
// PAPER_DIGEST_NOTION_TOKEN (or NOTION_TOKEN) names the key notion-token.
//
// Supported keys: anthropic-api-key, gemini-api-key, openai-api-key, notion-token,
// notion-database-id, xhs-cookies, aws-access-key, aws-secret-key.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Key names.
const (
	AnthropicAPIKey  = "anthropic-api-key"
	GeminiAPIKey     = "gemini-api-key"
	OpenAIAPIKey     = "openai-api-key"
	NotionToken      = "notion-token"
	NotionDatabaseID = "notion-database-id"
	SocialCookies    = "xhs-cookies"
	AWSAccessKey     = "aws-access-key"
	AWSSecretKey     = "aws-secret-key"
)

// Known lists every key the CLI reads.
var Known = []string{
	AnthropicAPIKey, GeminiAPIKey, OpenAIAPIKey,
	NotionToken, NotionDatabaseID, SocialCookies,
	AWSAccessKey, AWSSecretKey,
}

const envPrefix = "PAPER_DIGEST_"

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("could not read secret", "key", name, "error", err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// LoadEnv reads a dotenv file and returns the known keys it sets. A
// missing file is not an error.
func LoadEnv(path string) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}

	secrets := make(map[string]string)
	for _, key := range Known {
		for _, name := range []string{envPrefix + envName(key), envName(key)} {
			if v := strings.TrimSpace(vars[name]); v != "" {
				secrets[key] = v
				break
			}
		}
	}
	return secrets, nil
}

// LoadAll merges the dotenv file and the secrets directory. Directory
// entries win over dotenv values.
func LoadAll(dir, envFile string) (map[string]string, error) {
	merged, err := LoadEnv(envFile)
	if err != nil {
		return nil, err
	}
	fromDir, err := Load(dir)
	if err != nil {
		return nil, err
	}
	for k, v := range fromDir {
		merged[k] = v
	}
	return merged, nil
}

// envName maps "notion-token" to "NOTION_TOKEN".
func envName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}
