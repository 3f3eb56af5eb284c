package gh

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	github "github.com/google/go-github/v55/github"
	"golang.org/x/oauth2"
)

const defaultUserAgent = "ghpick"

var fullSHAPattern = regexp.MustCompile(`^[a-fA-F0-9]{40}$`)

// IsFullSHA reports whether s is a complete 40-hex commit SHA.
func IsFullSHA(s string) bool {
	return fullSHAPattern.MatchString(s)
}

// Options configures a REST client. Either Token or Username+Password must be
// supplied; Basic credentials are passed on every request the way the GitHub
// API expects them. BaseURL and UploadURL target a GitHub Enterprise
// instance; UploadURL defaults to BaseURL when only the latter is set.
type Options struct {
	Username  string
	Password  string
	Token     string
	Owner     string
	Repo      string
	BaseURL   string
	UploadURL string
}

type restClient struct {
	client *github.Client
	owner  string
	repo   string
}

// NewRESTClient returns a Client backed by the go-github REST client.
func NewRESTClient(ctx context.Context, opts Options) (Client, error) {
	if opts.Owner == "" || opts.Repo == "" {
		return nil, fmt.Errorf("github owner and repo are required")
	}

	var httpClient *http.Client
	switch {
	case opts.Token != "":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
		httpClient = oauth2.NewClient(ctx, ts)
	case opts.Username != "" && opts.Password != "":
		tp := &github.BasicAuthTransport{Username: opts.Username, Password: opts.Password}
		httpClient = tp.Client()
	default:
		return nil, fmt.Errorf("github credentials are required (token, or username and password)")
	}

	ghClient := github.NewClient(httpClient)

	if baseURL := strings.TrimSpace(opts.BaseURL); baseURL != "" {
		baseNormalized, err := normalizeGitHubURL(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}

		uploadURL := strings.TrimSpace(opts.UploadURL)
		if uploadURL == "" {
			uploadURL = baseURL
		}
		uploadNormalized, err := normalizeGitHubURL(uploadURL)
		if err != nil {
			return nil, fmt.Errorf("parse github upload url: %w", err)
		}

		ghClient, err = ghClient.WithEnterpriseURLs(baseNormalized, uploadNormalized)
		if err != nil {
			return nil, fmt.Errorf("construct enterprise github client: %w", err)
		}
	} else if strings.TrimSpace(opts.UploadURL) != "" {
		return nil, fmt.Errorf("github upload url cannot be set without base url")
	}

	ghClient.UserAgent = defaultUserAgent

	return &restClient{client: ghClient, owner: opts.Owner, repo: opts.Repo}, nil
}

func normalizeGitHubURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("url cannot be empty")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}

	if parsed.Scheme == "" {
		return "", fmt.Errorf("url must include scheme (e.g. https://)")
	}

	if parsed.Host == "" {
		return "", fmt.Errorf("url must include host")
	}

	if parsed.Path == "" {
		parsed.Path = "/"
	} else if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}

	parsed.RawQuery = ""
	parsed.Fragment = ""

	return parsed.String(), nil
}

func (c *restClient) ResolveRef(ctx context.Context, identifier string) (string, error) {
	if IsFullSHA(identifier) {
		return identifier, nil
	}

	ref, err := c.GetBranch(ctx, identifier)
	if err == nil {
		return ref.SHA, nil
	}
	if !IsNotFound(err) {
		return "", err
	}

	ref, err = c.GetTag(ctx, identifier)
	if err == nil {
		return ref.SHA, nil
	}
	if !IsNotFound(err) {
		return "", err
	}

	return "", &InvalidRefError{Identifier: identifier}
}

func (c *restClient) GetTree(ctx context.Context, ref string, recursive bool) (Tree, error) {
	sha, err := c.ResolveRef(ctx, ref)
	if err != nil {
		return Tree{}, err
	}

	tree, resp, err := c.client.Git.GetTree(ctx, c.owner, c.repo, sha, recursive)
	if err != nil {
		return Tree{}, classify(fmt.Sprintf("get tree %s", sha), resp, err)
	}

	return convertTree(tree), nil
}

func (c *restClient) CreateTree(ctx context.Context, entries []TreeEntry, baseTree string) (Tree, error) {
	ghEntries := make([]*github.TreeEntry, 0, len(entries))
	for _, entry := range entries {
		ghEntries = append(ghEntries, &github.TreeEntry{
			Path: github.String(entry.Path),
			Mode: github.String(entry.Mode),
			Type: github.String(entry.Type),
			SHA:  github.String(entry.SHA),
		})
	}

	tree, resp, err := c.client.Git.CreateTree(ctx, c.owner, c.repo, baseTree, ghEntries)
	if err != nil {
		return Tree{}, classify("create tree", resp, err)
	}

	return convertTree(tree), nil
}

func (c *restClient) CreateBlob(ctx context.Context, content []byte) (Blob, error) {
	blob := &github.Blob{
		Content:  github.String(base64.StdEncoding.EncodeToString(content)),
		Encoding: github.String("base64"),
	}

	created, resp, err := c.client.Git.CreateBlob(ctx, c.owner, c.repo, blob)
	if err != nil {
		return Blob{}, classify("create blob", resp, err)
	}

	return Blob{SHA: created.GetSHA()}, nil
}

func (c *restClient) GetBlob(ctx context.Context, sha string) (Blob, error) {
	blob, resp, err := c.client.Git.GetBlob(ctx, c.owner, c.repo, sha)
	if err != nil {
		return Blob{}, classify(fmt.Sprintf("get blob %s", sha), resp, err)
	}

	content := blob.GetContent()
	if blob.GetEncoding() == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(stripWhitespace(content))
		if err != nil {
			return Blob{}, fmt.Errorf("decode blob %s: %w", sha, err)
		}
		return Blob{SHA: blob.GetSHA(), Content: decoded}, nil
	}

	return Blob{SHA: blob.GetSHA(), Content: []byte(content)}, nil
}

func (c *restClient) GetCommit(ctx context.Context, ref string) (Commit, error) {
	sha, err := c.ResolveRef(ctx, ref)
	if err != nil {
		return Commit{}, err
	}

	commit, resp, err := c.client.Git.GetCommit(ctx, c.owner, c.repo, sha)
	if err != nil {
		return Commit{}, classify(fmt.Sprintf("get commit %s", sha), resp, err)
	}

	return convertCommit(commit), nil
}

func (c *restClient) CreateCommit(ctx context.Context, message, treeSHA string, parents []string, author CommitAuthor) (Commit, error) {
	ghParents := make([]*github.Commit, 0, len(parents))
	for _, parent := range parents {
		ghParents = append(ghParents, &github.Commit{SHA: github.String(parent)})
	}

	commit := &github.Commit{
		Message: github.String(message),
		Tree:    &github.Tree{SHA: github.String(treeSHA)},
		Parents: ghParents,
	}
	if author.Name != "" || author.Email != "" {
		commit.Author = &github.CommitAuthor{
			Name:  github.String(author.Name),
			Email: github.String(author.Email),
		}
		if !author.Date.IsZero() {
			commit.Author.Date = &github.Timestamp{Time: author.Date}
		}
	}

	created, resp, err := c.client.Git.CreateCommit(ctx, c.owner, c.repo, commit)
	if err != nil {
		return Commit{}, classify("create commit", resp, err)
	}

	return convertCommit(created), nil
}

func (c *restClient) PointBranch(ctx context.Context, branch, sha string) (Ref, error) {
	if !IsFullSHA(sha) {
		resolved, err := c.ResolveRef(ctx, sha)
		if err != nil {
			return Ref{}, err
		}
		sha = resolved
	}

	ref := &github.Reference{
		Ref:    github.String(fmt.Sprintf("refs/heads/%s", branch)),
		Object: &github.GitObject{SHA: github.String(sha)},
	}

	updated, resp, err := c.client.Git.UpdateRef(ctx, c.owner, c.repo, ref, false)
	if err != nil {
		return Ref{}, classify(fmt.Sprintf("point branch %s", branch), resp, err)
	}

	return convertRef(updated), nil
}

func (c *restClient) GetBranch(ctx context.Context, name string) (Ref, error) {
	return c.getRef(ctx, "heads", name)
}

func (c *restClient) GetTag(ctx context.Context, name string) (Ref, error) {
	return c.getRef(ctx, "tags", name)
}

func (c *restClient) getRef(ctx context.Context, namespace, name string) (Ref, error) {
	ref, resp, err := c.client.Git.GetRef(ctx, c.owner, c.repo, fmt.Sprintf("%s/%s", namespace, name))
	if err != nil {
		return Ref{}, classify(fmt.Sprintf("get ref %s/%s", namespace, name), resp, err)
	}
	return convertRef(ref), nil
}

func (c *restClient) GetFile(ctx context.Context, path, ref string) ([]byte, error) {
	sha, err := c.ResolveRef(ctx, ref)
	if err != nil {
		return nil, err
	}

	file, _, resp, err := c.client.Repositories.GetContents(ctx, c.owner, c.repo, path, &github.RepositoryContentGetOptions{Ref: sha})
	if err != nil {
		return nil, classify(fmt.Sprintf("get file %s", path), resp, err)
	}
	if file == nil {
		return nil, fmt.Errorf("get file %s: path is a directory", path)
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decode file %s: %w", path, err)
	}

	return []byte(content), nil
}

func (c *restClient) Compare(ctx context.Context, base, target string, format CompareFormat) (string, error) {
	baseSHA, err := c.ResolveRef(ctx, base)
	if err != nil {
		return "", err
	}
	targetSHA, err := c.ResolveRef(ctx, target)
	if err != nil {
		return "", err
	}

	switch format {
	case FormatRaw:
		comparison, resp, err := c.client.Repositories.CompareCommits(ctx, c.owner, c.repo, baseSHA, targetSHA, nil)
		if err != nil {
			return "", classify(fmt.Sprintf("compare %s...%s", baseSHA, targetSHA), resp, err)
		}
		payload, err := json.Marshal(comparison)
		if err != nil {
			return "", fmt.Errorf("encode comparison: %w", err)
		}
		return string(payload), nil
	case FormatDiff, FormatPatch:
		rawType := github.Diff
		if format == FormatPatch {
			rawType = github.Patch
		}
		payload, resp, err := c.client.Repositories.CompareCommitsRaw(ctx, c.owner, c.repo, baseSHA, targetSHA, github.RawOptions{Type: rawType})
		if err != nil {
			return "", classify(fmt.Sprintf("compare %s...%s", baseSHA, targetSHA), resp, err)
		}
		return payload, nil
	default:
		return "", fmt.Errorf("unsupported compare format %q", format)
	}
}

func (c *restClient) ListCommitsSince(ctx context.Context, startSHA, endSHA string) ([]Commit, error) {
	start, err := c.ResolveRef(ctx, startSHA)
	if err != nil {
		return nil, err
	}
	end, err := c.ResolveRef(ctx, endSHA)
	if err != nil {
		return nil, err
	}

	startCommit, err := c.GetCommit(ctx, start)
	if err != nil {
		return nil, err
	}

	opts := &github.CommitsListOptions{
		SHA:         end,
		Since:       startCommit.Committer.Date,
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var commits []Commit
	for {
		page, resp, err := c.client.Repositories.ListCommits(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, classify("list commits", resp, err)
		}

		for _, rc := range page {
			if rc.GetSHA() == start {
				return commits, nil
			}
			commits = append(commits, convertRepositoryCommit(rc))
		}

		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return commits, nil
}

func classify(op string, resp *github.Response, err error) error {
	if err == nil {
		return nil
	}

	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}
	if status == 0 {
		var ghErr *github.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil {
			status = ghErr.Response.StatusCode
		}
	}

	kind := KindProvider
	switch status {
	case http.StatusBadRequest:
		kind = KindBadRequest
	case http.StatusUnauthorized:
		kind = KindInvalidCredentials
	case http.StatusNotFound:
		kind = KindNotFound
	case http.StatusConflict:
		kind = KindConflict
	case http.StatusUnprocessableEntity:
		kind = KindUnprocessable
	}

	return fmt.Errorf("%s: %w", op, &APIError{Kind: kind, StatusCode: status, Err: err})
}

func convertTree(tree *github.Tree) Tree {
	if tree == nil {
		return Tree{}
	}

	entries := make([]TreeEntry, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		if entry == nil {
			continue
		}
		entries = append(entries, TreeEntry{
			Path: entry.GetPath(),
			Mode: entry.GetMode(),
			Type: entry.GetType(),
			SHA:  entry.GetSHA(),
		})
	}

	return Tree{SHA: tree.GetSHA(), Entries: entries, Truncated: tree.GetTruncated()}
}

func convertCommit(commit *github.Commit) Commit {
	if commit == nil {
		return Commit{}
	}

	parents := make([]string, 0, len(commit.Parents))
	for _, parent := range commit.Parents {
		if sha := parent.GetSHA(); sha != "" {
			parents = append(parents, sha)
		}
	}

	return Commit{
		SHA:       commit.GetSHA(),
		TreeSHA:   commit.GetTree().GetSHA(),
		Message:   commit.GetMessage(),
		Parents:   parents,
		Author:    convertAuthor(commit.GetAuthor()),
		Committer: convertAuthor(commit.GetCommitter()),
	}
}

func convertRepositoryCommit(rc *github.RepositoryCommit) Commit {
	if rc == nil {
		return Commit{}
	}

	commit := convertCommit(rc.GetCommit())
	commit.SHA = rc.GetSHA()

	parents := make([]string, 0, len(rc.Parents))
	for _, parent := range rc.Parents {
		if sha := parent.GetSHA(); sha != "" {
			parents = append(parents, sha)
		}
	}
	if len(parents) > 0 {
		commit.Parents = parents
	}

	return commit
}

func convertAuthor(author *github.CommitAuthor) CommitAuthor {
	if author == nil {
		return CommitAuthor{}
	}
	return CommitAuthor{
		Name:  author.GetName(),
		Email: author.GetEmail(),
		Date:  author.GetDate().Time,
	}
}

func convertRef(ref *github.Reference) Ref {
	if ref == nil {
		return Ref{}
	}
	return Ref{Name: ref.GetRef(), SHA: ref.GetObject().GetSHA()}
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, s)
}
