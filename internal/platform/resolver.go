package platform

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/reposage/reposage/internal/fault"
)

// ParseURL resolves a pull/merge-request URL to a Ref. It recognizes:
//
//	https://github.com/{owner}/{repo}/pull/{number}
//	https://{host}/{owner}/{repo}/-/merge_requests/{number}
//	https://bitbucket.org/{owner}/{repo}/pull-requests/{number}
//
// GitLab is detected by the "-/merge_requests" path marker rather than by
// host, since self-hosted instances live on arbitrary domains. Host
// matching is case-insensitive and tolerates a leading "www.". Extra path
// segments after the number (e.g. /files, /diffs) are ignored, matching
// how the platforms themselves link into a PR. No network access occurs.
func ParseURL(raw string) (Ref, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Ref{}, fault.Wrap(fault.KindInvalidURL, err, "unparseable URL %q", raw)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return Ref{}, fault.New(fault.KindInvalidURL, "unsupported scheme %q in %q", u.Scheme, raw)
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return Ref{}, fault.New(fault.KindInvalidURL, "missing host in %q", raw)
	}

	segs := splitPath(u.Path)

	// GitLab first: the "-/merge_requests" marker is decisive on any host.
	if ref, ok := parseGitLabPath(host, segs); ok {
		return ref, nil
	}

	switch host {
	case githubHost:
		return parseNumbered(GitHub, host, segs, "pull", raw)
	case bitbucketHost:
		return parseNumbered(Bitbucket, host, segs, "pull-requests", raw)
	}

	return Ref{}, fault.New(fault.KindInvalidURL,
		"%q matches no supported pull-request URL pattern", raw)
}

func splitPath(p string) []string {
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// parseNumbered handles the GitHub/Bitbucket shape
// /{owner}/{repo}/{marker}/{number}.
func parseNumbered(kind Kind, host string, segs []string, marker, raw string) (Ref, error) {
	if len(segs) < 4 || segs[2] != marker {
		return Ref{}, fault.New(fault.KindInvalidURL,
			"%q matches no supported pull-request URL pattern", raw)
	}

	number, err := parseRequestNumber(segs[3])
	if err != nil {
		return Ref{}, err
	}

	return Ref{
		Platform: kind,
		Owner:    segs[0],
		Repo:     segs[1],
		Number:   number,
		Host:     host,
	}, nil
}

// parseGitLabPath looks for .../{namespace...}/{repo}/-/merge_requests/{number}.
// GitLab namespaces may contain subgroups, so everything before the repo
// segment joins into the owner.
func parseGitLabPath(host string, segs []string) (Ref, bool) {
	marker := -1
	for i := 0; i+1 < len(segs); i++ {
		if segs[i] == "-" && segs[i+1] == "merge_requests" {
			marker = i
			break
		}
	}
	if marker < 2 || marker+2 >= len(segs) {
		return Ref{}, false
	}

	number, err := parseRequestNumber(segs[marker+2])
	if err != nil {
		return Ref{}, false
	}

	return Ref{
		Platform: GitLab,
		Owner:    strings.Join(segs[:marker-1], "/"),
		Repo:     segs[marker-1],
		Number:   number,
		Host:     host,
	}, true
}

func parseRequestNumber(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fault.New(fault.KindInvalidURL, "%q is not a positive request number", s)
	}
	return n, nil
}
