// Package testutils provides shared test infrastructure: an in-memory
// Seafile share served over httptest.
package testutils

import (
	"archive/zip"
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
)

// Node is an entry in a fake share tree.
type Node struct {
	Name     string
	Folder   bool
	Data     []byte  // file contents, files only
	Children []*Node // folders only

	// ExportDeny makes the archive endpoint reject this folder with a
	// 400 response carrying the given message.
	ExportDeny string

	// Broken makes the file endpoint fail with a 500 response.
	Broken bool
}

// File builds a file node.
func File(name string, data []byte) *Node {
	return &Node{Name: name, Data: data}
}

// Folder builds a folder node.
func Folder(name string, children ...*Node) *Node {
	return &Node{Name: name, Folder: true, Children: children}
}

type exportJob struct {
	path      string
	pollsLeft int
	released  bool
}

// Share is a fake Seafile share. Mount Handler on an httptest server
// and point a client at it.
type Share struct {
	// Token is the share link token the fake accepts.
	Token string

	// PollsUntilReady is how many progress polls report an unfinished
	// archive before the job completes. Zero means ready on the first
	// poll.
	PollsUntilReady int

	mu       sync.Mutex
	nodes    map[string]*Node
	jobs     map[string]*exportJob
	nextJob  int
	inits    map[string]int
	fetches  map[string]int
	lists    map[string]int
	releases int
}

// NewShare builds a fake share from a tree. The root node's name is
// ignored, its path is "/".
func NewShare(token string, root *Node) *Share {
	s := &Share{
		Token:   token,
		nodes:   map[string]*Node{},
		jobs:    map[string]*exportJob{},
		inits:   map[string]int{},
		fetches: map[string]int{},
		lists:   map[string]int{},
	}
	s.index("/", root)
	return s
}

func (s *Share) index(p string, node *Node) {
	s.nodes[p] = node
	for _, child := range node.Children {
		s.index(path.Join(p, child.Name), child)
	}
}

// Handler returns the share's HTTP routes.
func (s *Share) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/d/"+s.Token+"/files/", s.handleFile)
	mux.HandleFunc("/d/"+s.Token+"/", s.handleListing)
	mux.HandleFunc("/api/v2.1/share-link-zip-task/", s.handleExportInit)
	mux.HandleFunc("/api/v2.1/query-zip-progress/", s.handleProgress)
	mux.HandleFunc("/seafhttp/zip/", s.handleArchive)
	mux.HandleFunc("/api/v2.1/cancel-zip-task/", s.handleRelease)
	return mux
}

func (s *Share) handleFile(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("p")

	s.mu.Lock()
	node := s.nodes[p]
	if node != nil && !node.Folder {
		s.fetches[p]++
	}
	s.mu.Unlock()

	if node == nil || node.Folder {
		http.NotFound(w, r)
		return
	}
	if node.Broken {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Write(node.Data)
}

func (s *Share) handleListing(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("p")

	s.mu.Lock()
	node := s.nodes[p]
	if node != nil && node.Folder {
		s.lists[p]++
	}
	s.mu.Unlock()

	if node == nil || !node.Folder {
		http.NotFound(w, r)
		return
	}
	fmt.Fprint(w, s.listingHTML(p, node))
}

// listingHTML renders a share listing page the way Seafile does: file
// rows carry the file-item class, folder rows do not.
func (s *Share) listingHTML(p string, node *Node) string {
	var b strings.Builder
	b.WriteString("<html><body><table>\n")
	b.WriteString("<thead><tr><th>Name</th><th>Size</th><th>Last Update</th></tr></thead>\n<tbody>\n")
	for _, child := range node.Children {
		childPath := path.Join(p, child.Name)
		if child.Folder {
			q := url.Values{"p": {childPath}, "mode": {"list"}}
			fmt.Fprintf(&b, `<tr><td><a class="normal" href="/d/%s/?%s">%s</a></td></tr>`+"\n",
				s.Token, q.Encode(), child.Name)
			continue
		}
		q := url.Values{"p": {childPath}, "dl": {"1"}}
		fmt.Fprintf(&b, `<tr class="file-item"><td><a class="normal" href="/d/%s/files/?%s">%s</a></td></tr>`+"\n",
			s.Token, q.Encode(), child.Name)
	}
	b.WriteString("</tbody>\n</table></body></html>\n")
	return b.String()
}

func (s *Share) handleExportInit(w http.ResponseWriter, r *http.Request) {
	if got := r.URL.Query().Get("share_link_token"); got != s.Token {
		http.Error(w, "unknown share", http.StatusForbidden)
		return
	}
	p := r.URL.Query().Get("path")

	s.mu.Lock()
	defer s.mu.Unlock()

	s.inits[p]++
	node := s.nodes[p]
	if node == nil || !node.Folder {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error_msg": "Folder does not exist."}`)
		return
	}
	if node.ExportDeny != "" {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, `{"error_msg": %q}`, node.ExportDeny)
		return
	}

	s.nextJob++
	token := fmt.Sprintf("zip-%d", s.nextJob)
	s.jobs[token] = &exportJob{path: p, pollsLeft: s.PollsUntilReady}
	fmt.Fprintf(w, `{"zip_token": %q}`, token)
}

func (s *Share) handleProgress(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[token]
	if !ok {
		http.NotFound(w, r)
		return
	}
	total := fileCount(s.nodes[job.path])
	if job.pollsLeft > 0 {
		job.pollsLeft--
		pending := total
		if pending == 0 {
			pending = 1
		}
		fmt.Fprintf(w, `{"zipped": 0, "total": %d}`, pending)
		return
	}
	fmt.Fprintf(w, `{"zipped": %d, "total": %d}`, total, total)
}

func (s *Share) handleArchive(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.URL.Path, "/seafhttp/zip/")

	s.mu.Lock()
	job, ok := s.jobs[token]
	var node *Node
	if ok && !job.released {
		node = s.nodes[job.path]
	}
	s.mu.Unlock()

	if node == nil {
		http.NotFound(w, r)
		return
	}
	w.Write(archiveBytes(node))
}

func (s *Share) handleRelease(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token := r.PostFormValue("token")

	s.mu.Lock()
	defer s.mu.Unlock()

	if job, ok := s.jobs[token]; ok && !job.released {
		job.released = true
		s.releases++
	}
	fmt.Fprint(w, `{"success": true}`)
}

// archiveBytes builds a real zip of the folder's subtree, with the
// folder itself as the top-level directory the way Seafile does it.
func archiveBytes(node *Node) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	var add func(prefix string, n *Node)
	add = func(prefix string, n *Node) {
		if !n.Folder {
			f, err := zw.Create(path.Join(prefix, n.Name))
			if err != nil {
				return
			}
			f.Write(n.Data)
			return
		}
		for _, child := range n.Children {
			add(path.Join(prefix, n.Name), child)
		}
	}
	add("", node)

	zw.Close()
	return buf.Bytes()
}

func fileCount(node *Node) int {
	if node == nil {
		return 0
	}
	if !node.Folder {
		return 1
	}
	total := 0
	for _, child := range node.Children {
		total += fileCount(child)
	}
	return total
}

// ReleaseCount reports how many export jobs have been released.
func (s *Share) ReleaseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releases
}

// OpenJobs reports how many export jobs were acquired but never released.
func (s *Share) OpenJobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	open := 0
	for _, job := range s.jobs {
		if !job.released {
			open++
		}
	}
	return open
}

// FileFetches reports how often a file was downloaded.
func (s *Share) FileFetches(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches[path]
}

// ExportInits reports how often an export was requested for a path.
func (s *Share) ExportInits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inits[path]
}

// Listings reports how often a folder was listed.
func (s *Share) Listings(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lists[path]
}
