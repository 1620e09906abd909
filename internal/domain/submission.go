// Package domain contains the core data structures and domain logic for the application.
package domain

import (
	"encoding/json"
	"fmt"
)

// RepoTarget identifies the GitHub repository being harvested.
type RepoTarget struct {
	Owner string
	Name  string
}

// FullName returns the repository in "owner/name" form.
func (t RepoTarget) FullName() string {
	return fmt.Sprintf("%s/%s", t.Owner, t.Name)
}

// RawItem is one fetched issue wrapped with provenance metadata, exactly as
// it is persisted on disk. Fields are declared in alphabetical order so that
// json.MarshalIndent produces sorted keys for reproducible diffs.
type RawItem struct {
	FetchedAt  string          `json:"fetched_at"`
	Issue      json.RawMessage `json:"issue"`
	Repository string          `json:"repo"`
	Source     string          `json:"source"`
}

// Submission is the validated record derived from one raw item. It is the
// core domain entity of this application. JSON names follow the record
// format's historical aliases; Opened/Closed are unix seconds and a Closed
// value of 0 means the issue was never closed. Fields are declared in
// alphabetical order so marshaled output has sorted keys.
type Submission struct {
	AuthorHandle string   `json:"AuthorHandle"`
	Closed       int64    `json:"Closed"`
	Editor       string   `json:"Editor"`
	IssueNumber  int      `json:"IssueNumber"`
	Labels       []string `json:"Labels"`
	Opened       int64    `json:"Opened"`
	Repository   string   `json:"Repository"`
	Reviewers    []string `json:"Reviewers"`
	Version      string   `json:"Version"`
}
