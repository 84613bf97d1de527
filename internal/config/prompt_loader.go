package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// defaultPromptDir is the subdirectory within the user's home directory.
const defaultPromptDir = ".config/tidytabs/prompts"

// LoadPromptContent resolves a prompt template.
// An absolute configuredPath is read directly; a relative one is resolved
// inside ~/.config/tidytabs/prompts/ and must exist. With no configuredPath,
// defaultFilename is looked up in the same directory and builtin is returned
// when it is absent.
func LoadPromptContent(configuredPath, defaultFilename, builtin string) (string, error) {
	if configuredPath != "" && filepath.IsAbs(configuredPath) {
		return readPrompt(configuredPath)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		if configuredPath == "" {
			return builtin, nil
		}
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	if configuredPath != "" {
		return readPrompt(filepath.Join(homeDir, defaultPromptDir, configuredPath))
	}

	content, err := readPrompt(filepath.Join(homeDir, defaultPromptDir, defaultFilename))
	if errors.Is(err, os.ErrNotExist) {
		return builtin, nil
	}
	return content, err
}

func readPrompt(path string) (string, error) {
	promptBytes, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt file '%s': %w", path, err)
	}
	if len(promptBytes) == 0 {
		return "", fmt.Errorf("prompt file '%s' is empty", path)
	}
	return string(promptBytes), nil
}
