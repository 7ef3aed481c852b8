package actions

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	linkEntrySeparatorConstant      = ","
	linkParameterSeparatorConstant  = ";"
	linkTargetPrefixConstant        = "<"
	linkTargetSuffixConstant        = ">"
	linkRelationKeyConstant         = "rel"
	linkLastRelationConstant        = "last"
	linkPageParameterConstant       = "page"
	singlePageCountConstant         = 1
	lastPageMissingTemplateConstant = "%w: %q"
)

// ErrLastPageMissing indicates a Link header without a usable rel="last" entry.
var ErrLastPageMissing = errors.New("pagination header has no last page entry")

// ParseLastPage returns the page number referenced by the rel="last" entry of a Link header.
// An absent or blank header describes a single page.
func ParseLastPage(linkHeader string) (int, error) {
	trimmedHeader := strings.TrimSpace(linkHeader)
	if len(trimmedHeader) == 0 {
		return singlePageCountConstant, nil
	}

	for _, entry := range strings.Split(trimmedHeader, linkEntrySeparatorConstant) {
		target, relations, parsed := splitLinkEntry(entry)
		if !parsed || !containsRelation(relations, linkLastRelationConstant) {
			continue
		}
		pageNumber, pageFound := pageNumberFromTarget(target)
		if pageFound {
			return pageNumber, nil
		}
	}

	return 0, fmt.Errorf(lastPageMissingTemplateConstant, ErrLastPageMissing, trimmedHeader)
}

func splitLinkEntry(entry string) (string, []string, bool) {
	segments := strings.Split(entry, linkParameterSeparatorConstant)
	target := strings.TrimSpace(segments[0])
	if !strings.HasPrefix(target, linkTargetPrefixConstant) || !strings.HasSuffix(target, linkTargetSuffixConstant) {
		return "", nil, false
	}
	target = strings.TrimSuffix(strings.TrimPrefix(target, linkTargetPrefixConstant), linkTargetSuffixConstant)

	var relations []string
	for _, parameter := range segments[1:] {
		key, value, hasValue := strings.Cut(strings.TrimSpace(parameter), "=")
		if !hasValue || !strings.EqualFold(strings.TrimSpace(key), linkRelationKeyConstant) {
			continue
		}
		relations = append(relations, strings.Fields(strings.Trim(strings.TrimSpace(value), `"`))...)
	}

	return target, relations, true
}

func containsRelation(relations []string, expected string) bool {
	for _, relation := range relations {
		if strings.EqualFold(relation, expected) {
			return true
		}
	}
	return false
}

func pageNumberFromTarget(target string) (int, bool) {
	parsedURL, parseError := url.Parse(target)
	if parseError != nil {
		return 0, false
	}
	pageNumber, conversionError := strconv.Atoi(parsedURL.Query().Get(linkPageParameterConstant))
	if conversionError != nil || pageNumber < singlePageCountConstant {
		return 0, false
	}
	return pageNumber, true
}
