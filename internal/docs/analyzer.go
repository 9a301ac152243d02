package docs

import (
	"context"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/dejo1307/docdrift/internal/facts"
	"github.com/dejo1307/docdrift/internal/snapshot"
)

// Analyzer discovers documentation and extracts claims from it.
type Analyzer struct{}

// New creates a new documentation Analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// Discover returns every documentation file in the listing, classified and prioritized.
// Unreadable files are reported as warnings.
func (a *Analyzer) Discover(ctx context.Context, src snapshot.Source) ([]facts.DocumentFile, []facts.Warning, error) {
	var docs []facts.DocumentFile
	var warnings []facts.Warning

	for _, f := range src.Files() {
		if err := ctx.Err(); err != nil {
			return nil, warnings, err
		}
		category, ok := Classify(f.Path)
		if !ok {
			continue
		}
		content, err := src.ReadFile(f.Path)
		if err != nil {
			warnings = append(warnings, facts.Warning{Phase: "documentation", File: f.Path, Message: err.Error()})
			continue
		}
		if snapshot.IsBinary(content) {
			continue
		}
		docs = append(docs, facts.DocumentFile{
			Path:         f.Path,
			Category:     category,
			Content:      string(content),
			LastModified: f.ModTime,
		})
	}
	return PrioritizeDocuments(docs), warnings, nil
}

// Analyze discovers documentation, extracts claims and builds the aggregate views.
// A repository without documentation yields an empty analysis, not an error.
func (a *Analyzer) Analyze(ctx context.Context, src snapshot.Source) (*facts.DocumentationAnalysis, error) {
	docs, warnings, err := a.Discover(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("discovering documentation: %w", err)
	}
	klog.Infof("[docs] discovered %d documentation files", len(docs))

	var claims []facts.Claim
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("extracting claims: %w", err)
		}
		if d.Category == facts.CategoryAPI && !isMarkdown(d.Path) {
			if c, ok := openAPIClaim(d); ok {
				claims = append(claims, c)
			}
			continue
		}
		extracted := ExtractClaims(d)
		klog.V(2).Infof("[docs] %s: %d claims", d.Path, len(extracted))
		claims = append(claims, extracted...)
	}
	for i := range claims {
		claims[i].ID = fmt.Sprintf("C%03d", i+1)
	}

	analysis := &facts.DocumentationAnalysis{
		Documents:         docs,
		Claims:            claims,
		Architecture:      buildArchitecture(docs, claims),
		Setup:             buildSetup(docs),
		API:               buildAPI(docs),
		QualityStandards:  buildQualityStandards(docs),
		KnownIssues:       buildKnownIssues(docs),
		CompletenessScore: completeness(docs),
		Warnings:          warnings,
	}

	testable := len(analysis.TestableClaims())
	klog.Infof("[docs] extracted %d claims (%d testable), completeness %.0f%%",
		len(claims), testable, analysis.CompletenessScore*100)
	return analysis, nil
}
