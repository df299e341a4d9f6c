package crawl

// Kind classifies a remote resource.
type Kind int

const (
	KindFile Kind = iota
	KindFolder
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindFolder:
		return "folder"
	default:
		return "unknown"
	}
}

// ResourceRef identifies one node in the remote tree. Path is the
// slash-delimited logical location within the share and the resource's
// identity; Name is the label the backend displays and plays no part
// in identity.
type ResourceRef struct {
	Path string
	Name string
	Kind Kind
}

// Root returns the synthetic ref for the top of a share's tree.
func Root() ResourceRef {
	return ResourceRef{Path: "/", Name: "Root", Kind: KindFolder}
}
