package domain

import (
	"sort"
	"strings"
)

// UninstalledVersion is the declared version meaning "intentionally not installed".
const UninstalledVersion = "0"

// DeployedStatus is the helm release status of a healthy deployment.
const DeployedStatus = "deployed"

// DeployRequest pairs an environment with the version it should run.
type DeployRequest struct {
	Environment string
	Version     string
}

// Installs reports whether the request installs the chart rather than removing it.
func (r DeployRequest) Installs() bool {
	return r.Version != UninstalledVersion
}

// CommitMessage describes the stack change made for the request.
func (r DeployRequest) CommitMessage(project string) string {
	if !r.Installs() {
		return "Uninstall " + project + " from the " + r.Environment + " environment"
	}
	return "Bump " + project + " to version " + r.Version + " in the " + r.Environment + " environment"
}

// LiveRelease is what the cluster reports for a project in an environment.
type LiveRelease struct {
	Found     bool
	Name      string
	Namespace string
	Chart     string
	Status    string
}

// Matches reports whether the live release satisfies the desired version:
// chart "{project}-{version}" in status deployed, or, for the uninstalled
// sentinel, no release at all.
func (l LiveRelease) Matches(project, version string) bool {
	if version == UninstalledVersion {
		return !l.Found
	}
	return l.Found && l.Chart == project+"-"+version && l.Status == DeployedStatus
}

// ProjectKey converts a hyphenated project name to the lowerCamel key used
// in stack descriptors: "my-service" becomes "myService".
func ProjectKey(project string) string {
	parts := strings.Split(strings.ToLower(project), "-")
	var sb strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 || sb.Len() == 0 {
			sb.WriteString(p)
			continue
		}
		sb.WriteString(strings.ToUpper(p[:1]))
		sb.WriteString(p[1:])
	}
	return sb.String()
}

// LatestVersion returns the version of the first tag, in the given order,
// named "{environment}-{version}". Tags are expected most recent first.
// The remainder must be a semantic version or the uninstalled sentinel, so
// "eu-prod-1.0.0" is not mistaken for environment "eu".
func LatestVersion(tags []string, environment string) (string, bool) {
	prefix := environment + "-"
	for _, tag := range tags {
		if !strings.HasPrefix(tag, prefix) {
			continue
		}
		version := strings.TrimPrefix(tag, prefix)
		if version == UninstalledVersion {
			return version, true
		}
		if _, err := ParseVersion(version); err == nil {
			return version, true
		}
	}
	return "", false
}

// PlanDeployRequests returns one request per declared environment that has
// at least one release tag. Requests are ordered by the recency of their
// most recent tag.
func PlanDeployRequests(tags []string, environments []string) []DeployRequest {
	type candidate struct {
		request DeployRequest
		rank    int
	}

	var candidates []candidate
	for _, env := range environments {
		version, ok := LatestVersion(tags, env)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate{
			request: DeployRequest{Environment: env, Version: version},
			rank:    tagRank(tags, env+"-"+version),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].rank < candidates[j].rank
	})

	requests := make([]DeployRequest, 0, len(candidates))
	for _, c := range candidates {
		requests = append(requests, c.request)
	}
	return requests
}

func tagRank(tags []string, tag string) int {
	for i, t := range tags {
		if t == tag {
			return i
		}
	}
	return len(tags)
}
