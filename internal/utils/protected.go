package utils

import (
	"bufio"
	"os"
	"strings"

	"golang.org/x/text/cases"
)

// ProtectedList holds title terms that are never removed, whatever their
// watch status
type ProtectedList struct {
	terms []string
}

// NewProtectedList builds a list from in-memory terms
func NewProtectedList(terms ...string) *ProtectedList {
	p := &ProtectedList{}
	for _, term := range terms {
		if term = strings.TrimSpace(term); term != "" {
			p.terms = append(p.terms, term)
		}
	}
	return p
}

// LoadProtectedList loads protected terms from a file, one per line. Blank
// lines and lines starting with '#' are ignored.
func LoadProtectedList(path string) (*ProtectedList, error) {
	// If file doesn't exist, return empty list
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &ProtectedList{}, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var terms []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		term := strings.TrimSpace(scanner.Text())
		if term != "" && !strings.HasPrefix(term, "#") {
			terms = append(terms, term)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return &ProtectedList{terms: terms}, nil
}

// IsProtected checks if a title contains any protected term
// Returns (isProtected, matchedTerm)
func (p *ProtectedList) IsProtected(title string) (bool, string) {
	if p == nil {
		return false, ""
	}
	for _, term := range p.terms {
		if ContainsFold(title, term) {
			return true, term
		}
	}
	return false, ""
}

// Len returns the number of protected terms
func (p *ProtectedList) Len() int {
	if p == nil {
		return 0
	}
	return len(p.terms)
}

// ContainsFold reports whether substr is within s under Unicode case folding
func ContainsFold(s, substr string) bool {
	fold := cases.Fold()
	return strings.Contains(fold.String(s), fold.String(substr))
}
