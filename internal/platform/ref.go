// Package platform resolves pull-request URLs and talks to the three
// supported git hosting platforms behind one adapter interface.
package platform

import "fmt"

// Kind identifies a supported git hosting platform
type Kind string

const (
	// GitHub pull requests (github.com)
	GitHub Kind = "github"
	// GitLab merge requests (gitlab.com or self-hosted)
	GitLab Kind = "gitlab"
	// Bitbucket pull requests (bitbucket.org)
	Bitbucket Kind = "bitbucket"
)

// Default public hosts per platform
const (
	githubHost    = "github.com"
	bitbucketHost = "bitbucket.org"
)

// Ref identifies one pull/merge request on a platform. It is built once
// by ParseURL and never mutated afterwards.
type Ref struct {
	Platform Kind   `json:"platform"`
	Owner    string `json:"owner"`
	Repo     string `json:"repo"`
	Number   int    `json:"number"`
	// Host is the instance the request lives on. It only differs from the
	// platform's public host for self-hosted GitLab.
	Host string `json:"host"`
}

// String renders the ref in owner/repo#number form.
func (r Ref) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}

// ProjectPath returns the namespace path of the repository (owner/repo).
func (r Ref) ProjectPath() string {
	return r.Owner + "/" + r.Repo
}

// Metadata describes a pull request as reported by its platform.
type Metadata struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Author       string `json:"author"`
	SourceBranch string `json:"source_branch"`
	TargetBranch string `json:"target_branch"`
	ChangedFiles int    `json:"changed_files"`
}
