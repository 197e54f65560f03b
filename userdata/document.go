// Copyright IBM Corp. 2024, 2025
// SPDX-License-Identifier: MPL-2.0

package userdata

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	domain "github.com/econnell/deis/contrib/gen-userdata/internal/shared"
	"gopkg.in/yaml.v3"
)

const (
	// Header is written ahead of every generated document. coreos-cloudinit
	// only treats user-data as a cloud-config when it starts with this line.
	Header = "#cloud-config\n---\n"

	cloudConfigComment = "#cloud-config"

	keyCoreOS  = "coreos"
	keyUnits   = "units"
	keyEtcd    = "etcd"
	keyDataDir = "data-dir"

	strTag = "!!str"
	mapTag = "!!map"
)

var (
	ErrMissingKey     = errors.New("missing key")
	ErrUnexpectedType = errors.New("unexpected type")
	ErrEmptyDocument  = errors.New("document is empty")
	ErrMultiDocument  = errors.New("stream holds more than one document")
)

// Document is a cloud-config document kept as a YAML node tree, so keys keep
// their order and comments survive re-encoding.
type Document struct {
	doc *yaml.Node
}

// LoadFile reads and parses the cloud-config document at path.
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("userdata: unable to open base document %s: %w", path, err)
	}
	defer f.Close()

	d, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("userdata: unable to load base document %s: %w", path, err)
	}

	return d, nil
}

// Decode parses the single YAML document in r. The document root has to be a
// mapping.
func Decode(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)

	var doc yaml.Node
	err := dec.Decode(&doc)
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyDocument
	}
	if err != nil {
		return nil, fmt.Errorf("userdata: unable to parse document: %w", err)
	}

	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		if err != nil {
			return nil, fmt.Errorf("userdata: unable to parse document: %w", err)
		}
		return nil, ErrMultiDocument
	}

	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, ErrEmptyDocument
	}

	root := resolve(doc.Content[0])
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("userdata: document root is a %s: %w", kindName(root), ErrUnexpectedType)
	}

	// The header is written by Encode, drop the one from the base document.
	doc.HeadComment = stripCloudConfigComment(doc.HeadComment)
	root.HeadComment = stripCloudConfigComment(root.HeadComment)
	if len(root.Content) > 0 {
		root.Content[0].HeadComment = stripCloudConfigComment(root.Content[0].HeadComment)
	}

	return &Document{doc: &doc}, nil
}

// Units returns the current coreos.units list.
func (d *Document) Units() ([]domain.Unit, error) {
	seq, err := d.unitsNode(false)
	if err != nil {
		return nil, err
	}

	var units []domain.Unit
	if err := seq.Decode(&units); err != nil {
		return nil, fmt.Errorf("userdata: unable to decode %s.%s: %w", keyCoreOS, keyUnits, err)
	}

	return units, nil
}

// PrependUnits puts units in front of the existing coreos.units entries,
// keeping the order of both. An anchored list referenced by coreos.units is
// left as it is.
func (d *Document) PrependUnits(units []domain.Unit) error {
	seq, err := d.unitsNode(true)
	if err != nil {
		return err
	}

	content := make([]*yaml.Node, 0, len(units)+len(seq.Content))
	for _, u := range units {
		content = append(content, unitNode(u))
	}

	seq.Content = append(content, seq.Content...)
	return nil
}

// EtcdDataDir returns coreos.etcd.data-dir, or an empty string when the etcd
// section does not set it.
func (d *Document) EtcdDataDir() (string, error) {
	etcd, err := d.etcdNode(false)
	if err != nil {
		return "", err
	}

	_, v := lookup(etcd, keyDataDir)
	if v == nil {
		return "", nil
	}

	return resolve(v).Value, nil
}

// SetEtcdDataDir overwrites coreos.etcd.data-dir, adding the key when the etcd
// section exists without it.
func (d *Document) SetEtcdDataDir(dir string) error {
	etcd, err := d.etcdNode(true)
	if err != nil {
		return err
	}

	value := scalarNode(dir)
	for i := 0; i+1 < len(etcd.Content); i += 2 {
		if etcd.Content[i].Value == keyDataDir {
			etcd.Content[i+1] = value
			return nil
		}
	}

	etcd.Content = append(etcd.Content, scalarNode(keyDataDir), value)
	return nil
}

// Encode writes the cloud-config header followed by the document in block
// style.
func (d *Document) Encode(w io.Writer) error {
	if _, err := io.WriteString(w, Header); err != nil {
		return fmt.Errorf("userdata: unable to write header: %w", err)
	}

	blockStyle(d.doc)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d.doc); err != nil {
		return fmt.Errorf("userdata: unable to encode document: %w", err)
	}

	return enc.Close()
}

// The node accessors take detach to get a node that is safe to modify: an
// alias value is replaced by a copy of its target, so anchors keep their value.
func (d *Document) coreosNode(detach bool) (*yaml.Node, error) {
	return child(resolve(d.doc.Content[0]), keyCoreOS, keyCoreOS, yaml.MappingNode, detach)
}

func (d *Document) unitsNode(detach bool) (*yaml.Node, error) {
	coreos, err := d.coreosNode(detach)
	if err != nil {
		return nil, err
	}

	return child(coreos, keyCoreOS+"."+keyUnits, keyUnits, yaml.SequenceNode, detach)
}

func (d *Document) etcdNode(detach bool) (*yaml.Node, error) {
	coreos, err := d.coreosNode(detach)
	if err != nil {
		return nil, err
	}

	return child(coreos, keyCoreOS+"."+keyEtcd, keyEtcd, yaml.MappingNode, detach)
}

func child(parent *yaml.Node, path, key string, kind yaml.Kind, detach bool) (*yaml.Node, error) {
	for i := 0; i+1 < len(parent.Content); i += 2 {
		if parent.Content[i].Value != key {
			continue
		}

		v := resolve(parent.Content[i+1])
		if v.Kind != kind {
			return nil, fmt.Errorf("userdata: %s is a %s: %w", path, kindName(v), ErrUnexpectedType)
		}

		if detach && v != parent.Content[i+1] {
			v = detached(v)
			parent.Content[i+1] = v
		}

		return v, nil
	}

	return nil, fmt.Errorf("userdata: %s: %w", path, ErrMissingKey)
}

// detached returns a shallow copy of n without its anchor.
func detached(n *yaml.Node) *yaml.Node {
	c := *n
	c.Anchor = ""
	c.Content = append([]*yaml.Node(nil), n.Content...)
	return &c
}

// lookup returns the key and value nodes for key in mapping m.
func lookup(m *yaml.Node, key string) (*yaml.Node, *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i], m.Content[i+1]
		}
	}

	return nil, nil
}

func resolve(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}

	return n
}

func kindName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return "null"
		}
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "document"
	}
}

func blockStyle(n *yaml.Node) {
	n.Style &^= yaml.FlowStyle
	for _, c := range n.Content {
		blockStyle(c)
	}
}

func stripCloudConfigComment(comment string) string {
	if comment == "" {
		return comment
	}

	lines := strings.Split(comment, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) == cloudConfigComment {
			continue
		}
		kept = append(kept, l)
	}

	return strings.TrimLeft(strings.Join(kept, "\n"), "\n")
}

func scalarNode(value string) *yaml.Node {
	return &yaml.Node{
		Kind:  yaml.ScalarNode,
		Tag:   strTag,
		Value: value,
	}
}

func unitNode(u domain.Unit) *yaml.Node {
	// Double quoted keeps the leading newline of the bodies, a literal block
	// would lose it.
	content := scalarNode(u.Content)
	content.Style = yaml.DoubleQuotedStyle

	return &yaml.Node{
		Kind: yaml.MappingNode,
		Tag:  mapTag,
		Content: []*yaml.Node{
			scalarNode("name"), scalarNode(u.Name),
			scalarNode("command"), scalarNode(u.Command),
			scalarNode("content"), content,
		},
	}
}
