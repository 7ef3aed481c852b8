package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

const (
	tokenSourceSeparatorConstant                = ":"
	environmentTokenSourcePrefixConstant        = "env"
	fileTokenSourcePrefixConstant               = "file"
	tokenSourceMissingMessageConstant           = "token source must be provided"
	tokenSourceUnsupportedTemplateConstant      = "unsupported token source type %q"
	tokenSourceReferenceMissingTemplateConstant = "token source %q requires a reference"
	environmentTokenMissingTemplateConstant     = "environment variable %s is not set"
	environmentTokenEmptyTemplateConstant       = "environment variable %s is empty"
	fileTokenReadErrorTemplateConstant          = "unable to read token file %s: %w"
	fileTokenEmptyTemplateConstant              = "token file %s is empty"
	unknownTokenSourceTypeTemplateConstant      = "unknown token source type %q"
)

// TokenSourceType identifies where an authentication token is read from.
type TokenSourceType string

const (
	// TokenSourceTypeEnvironment reads the token from an environment variable.
	TokenSourceTypeEnvironment TokenSourceType = TokenSourceType(environmentTokenSourcePrefixConstant)
	// TokenSourceTypeFile reads the token from a file.
	TokenSourceTypeFile TokenSourceType = TokenSourceType(fileTokenSourcePrefixConstant)
)

// TokenSourceConfiguration describes a parsed token source.
type TokenSourceConfiguration struct {
	Type      TokenSourceType
	Reference string
}

// String renders the configuration in its env:/file: form.
func (configuration TokenSourceConfiguration) String() string {
	return string(configuration.Type) + tokenSourceSeparatorConstant + configuration.Reference
}

// EnvironmentLookup resolves environment variables.
type EnvironmentLookup func(string) (string, bool)

// FileReader reads file contents.
type FileReader func(string) ([]byte, error)

// TokenResolver resolves authentication tokens from configured sources.
type TokenResolver interface {
	ResolveToken(executionContext context.Context, configuration TokenSourceConfiguration) (string, error)
}

// ParseTokenSource parses env:NAME, file:/path, or a bare environment variable name.
func ParseTokenSource(rawValue string) (TokenSourceConfiguration, error) {
	trimmedValue := strings.TrimSpace(rawValue)
	if len(trimmedValue) == 0 {
		return TokenSourceConfiguration{}, errors.New(tokenSourceMissingMessageConstant)
	}

	prefix, reference, hasPrefix := strings.Cut(trimmedValue, tokenSourceSeparatorConstant)
	if !hasPrefix {
		return TokenSourceConfiguration{Type: TokenSourceTypeEnvironment, Reference: trimmedValue}, nil
	}

	sourceType := TokenSourceType(strings.ToLower(strings.TrimSpace(prefix)))
	switch sourceType {
	case TokenSourceTypeEnvironment, TokenSourceTypeFile:
	default:
		return TokenSourceConfiguration{}, fmt.Errorf(tokenSourceUnsupportedTemplateConstant, prefix)
	}

	trimmedReference := strings.TrimSpace(reference)
	if len(trimmedReference) == 0 {
		return TokenSourceConfiguration{}, fmt.Errorf(tokenSourceReferenceMissingTemplateConstant, trimmedValue)
	}

	return TokenSourceConfiguration{Type: sourceType, Reference: trimmedReference}, nil
}

// Resolver reads tokens from the environment or from files.
type Resolver struct {
	environmentLookup EnvironmentLookup
	fileReader        FileReader
}

// NewTokenResolver constructs a Resolver; nil dependencies fall back to the process environment and file system.
func NewTokenResolver(environmentLookup EnvironmentLookup, fileReader FileReader) *Resolver {
	resolver := &Resolver{environmentLookup: environmentLookup, fileReader: fileReader}
	if resolver.environmentLookup == nil {
		resolver.environmentLookup = os.LookupEnv
	}
	if resolver.fileReader == nil {
		resolver.fileReader = os.ReadFile
	}
	return resolver
}

// ResolveToken returns the trimmed token referenced by the configuration.
func (resolver *Resolver) ResolveToken(executionContext context.Context, configuration TokenSourceConfiguration) (string, error) {
	if executionContext != nil {
		if contextError := executionContext.Err(); contextError != nil {
			return "", contextError
		}
	}

	switch configuration.Type {
	case TokenSourceTypeEnvironment:
		value, found := resolver.environmentLookup(configuration.Reference)
		if !found {
			return "", fmt.Errorf(environmentTokenMissingTemplateConstant, configuration.Reference)
		}
		trimmedValue := strings.TrimSpace(value)
		if len(trimmedValue) == 0 {
			return "", fmt.Errorf(environmentTokenEmptyTemplateConstant, configuration.Reference)
		}
		return trimmedValue, nil
	case TokenSourceTypeFile:
		contents, readError := resolver.fileReader(configuration.Reference)
		if readError != nil {
			return "", fmt.Errorf(fileTokenReadErrorTemplateConstant, configuration.Reference, readError)
		}
		trimmedValue := strings.TrimSpace(string(contents))
		if len(trimmedValue) == 0 {
			return "", fmt.Errorf(fileTokenEmptyTemplateConstant, configuration.Reference)
		}
		return trimmedValue, nil
	default:
		return "", fmt.Errorf(unknownTokenSourceTypeTemplateConstant, configuration.Type)
	}
}
