package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/taigrr/showroom/pkg/math3d"
)

// ErrEmptyAsset is returned when a document contains no drawable triangles.
var ErrEmptyAsset = errors.New("models: asset has no triangle meshes")

const clearcoatExtension = "KHR_materials_clearcoat"

// Loader fetches and decodes assets. Sources are http(s) URLs or file paths;
// relative paths resolve against Root.
type Loader struct {
	Client *http.Client
	Root   string
}

// NewLoader creates a loader rooted at root.
func NewLoader(root string) *Loader {
	return &Loader{Client: http.DefaultClient, Root: root}
}

// Load fetches src and decodes it into an Asset.
func (l *Loader) Load(ctx context.Context, src string) (*Asset, error) {
	doc, err := l.open(ctx, src)
	if err != nil {
		return nil, err
	}
	asset, err := FromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", src, err)
	}
	asset.Source = src
	return asset, nil
}

// Resolve maps a source to a local path, or returns "" for remote sources.
func (l *Loader) Resolve(src string) string {
	if isRemote(src) {
		return ""
	}
	if filepath.IsAbs(src) || l.Root == "" {
		return filepath.Clean(src)
	}
	return filepath.Join(l.Root, src)
}

func (l *Loader) open(ctx context.Context, src string) (*gltf.Document, error) {
	if !isRemote(src) {
		doc, err := gltf.Open(l.Resolve(src))
		if err != nil {
			return nil, fmt.Errorf("open gltf: %w", err)
		}
		return doc, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", src, err)
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", src, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %s", src, resp.Status)
	}

	doc := new(gltf.Document)
	if err := gltf.NewDecoder(io.LimitReader(resp.Body, 512<<20)).Decode(doc); err != nil {
		return nil, fmt.Errorf("decode gltf: %w", err)
	}
	return doc, nil
}

func isRemote(src string) bool {
	u, err := url.Parse(src)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

// FromDocument flattens the default scene of doc into mesh nodes.
func FromDocument(doc *gltf.Document) (*Asset, error) {
	b := builder{doc: doc, asset: &Asset{}, materials: map[int]*Material{}}

	roots := sceneRoots(doc)
	for _, idx := range roots {
		if err := b.visit(idx, math3d.Identity(), 0); err != nil {
			return nil, err
		}
	}
	if len(b.asset.Nodes) == 0 {
		return nil, ErrEmptyAsset
	}
	return b.asset, nil
}

// sceneRoots returns the root nodes of the default scene, or every parentless
// node when the document names no scene.
func sceneRoots(doc *gltf.Document) []int {
	if len(doc.Scenes) > 0 {
		s := 0
		if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
			s = *doc.Scene
		}
		return doc.Scenes[s].Nodes
	}
	child := make(map[int]bool)
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			child[c] = true
		}
	}
	var roots []int
	for i := range doc.Nodes {
		if !child[i] {
			roots = append(roots, i)
		}
	}
	return roots
}

type builder struct {
	doc       *gltf.Document
	asset     *Asset
	materials map[int]*Material
	fallback  *Material
}

const maxDepth = 64

func (b *builder) visit(idx int, parent math3d.Mat4, depth int) error {
	if idx < 0 || idx >= len(b.doc.Nodes) {
		return fmt.Errorf("node %d out of range", idx)
	}
	if depth > maxDepth {
		return fmt.Errorf("node %d: hierarchy deeper than %d", idx, maxDepth)
	}
	node := b.doc.Nodes[idx]
	world := parent.Mul(localMatrix(node))

	if node.Mesh != nil {
		if err := b.addMesh(node, *node.Mesh, world); err != nil {
			return fmt.Errorf("mesh %d: %w", *node.Mesh, err)
		}
	}
	for _, c := range node.Children {
		if err := b.visit(c, world, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func localMatrix(n *gltf.Node) math3d.Mat4 {
	if n.Matrix != [16]float64{} && math3d.Mat4(n.Matrix) != math3d.Identity() {
		return math3d.Mat4(n.Matrix)
	}
	return math3d.Compose(
		math3d.V3FromArray(n.TranslationOrDefault()),
		n.RotationOrDefault(),
		math3d.V3FromArray(n.ScaleOrDefault()),
	)
}

func (b *builder) addMesh(node *gltf.Node, meshIdx int, world math3d.Mat4) error {
	if meshIdx < 0 || meshIdx >= len(b.doc.Meshes) {
		return fmt.Errorf("index out of range")
	}
	mesh := b.doc.Meshes[meshIdx]
	for pi, prim := range mesh.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles {
			continue
		}
		geom, err := b.readGeometry(prim)
		if err != nil {
			return fmt.Errorf("primitive %d: %w", pi, err)
		}
		if geom == nil {
			continue
		}
		name := node.Name
		if name == "" {
			name = mesh.Name
		}
		b.asset.Nodes = append(b.asset.Nodes, &MeshNode{
			Name:     name,
			Geometry: geom,
			World:    world,
			Material: b.material(prim.Material),
		})
	}
	return nil
}

func (b *builder) readGeometry(prim *gltf.Primitive) (*Geometry, error) {
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, nil
	}
	positions, err := modeler.ReadPosition(b.doc, b.doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}

	g := &Geometry{Positions: make([]math3d.Vec3, len(positions))}
	for i, p := range positions {
		g.Positions[i] = math3d.V3(float64(p[0]), float64(p[1]), float64(p[2]))
	}

	if prim.Indices != nil {
		g.Indices, err = modeler.ReadIndices(b.doc, b.doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return nil, fmt.Errorf("read indices: %w", err)
		}
	} else {
		g.Indices = make([]uint32, len(positions)-len(positions)%3)
		for i := range g.Indices {
			g.Indices[i] = uint32(i)
		}
	}
	for _, ix := range g.Indices {
		if int(ix) >= len(g.Positions) {
			return nil, fmt.Errorf("index %d out of range", ix)
		}
	}
	if len(g.Indices) < 3 {
		return nil, nil
	}

	if normIdx, ok := prim.Attributes[gltf.NORMAL]; ok {
		normals, err := modeler.ReadNormal(b.doc, b.doc.Accessors[normIdx], nil)
		if err != nil {
			return nil, fmt.Errorf("read normals: %w", err)
		}
		if len(normals) == len(positions) {
			g.Normals = make([]math3d.Vec3, len(normals))
			for i, n := range normals {
				g.Normals[i] = math3d.V3(float64(n[0]), float64(n[1]), float64(n[2]))
			}
		}
	}
	if g.Normals == nil {
		g.CalculateSmoothNormals()
	}
	return g, nil
}

// material returns the shared Material for a glTF material index so nodes that
// reference the same material see the same overrides.
func (b *builder) material(idx *int) *Material {
	if idx == nil || *idx < 0 || *idx >= len(b.doc.Materials) {
		if b.fallback == nil {
			b.fallback = DefaultMaterial()
			b.asset.Materials = append(b.asset.Materials, b.fallback)
		}
		return b.fallback
	}
	if m, ok := b.materials[*idx]; ok {
		return m
	}

	src := b.doc.Materials[*idx]
	m := DefaultMaterial()
	m.Name = src.Name
	if pbr := src.PBRMetallicRoughness; pbr != nil {
		m.BaseColor = pbr.BaseColorFactorOrDefault()
		m.Metalness = pbr.MetallicFactorOrDefault()
		m.Roughness = pbr.RoughnessFactorOrDefault()
	}
	m.ClearcoatRoughness = clearcoatRoughness(src)

	b.materials[*idx] = m
	b.asset.Materials = append(b.asset.Materials, m)
	return m
}

// clearcoatRoughness reads KHR_materials_clearcoat when present. The
// extension is not registered with the decoder, so it arrives as raw JSON.
func clearcoatRoughness(m *gltf.Material) float64 {
	ext, ok := m.Extensions[clearcoatExtension]
	if !ok {
		return 0
	}
	raw, ok := ext.(json.RawMessage)
	if !ok {
		return 0
	}
	var cc struct {
		RoughnessFactor float64 `json:"clearcoatRoughnessFactor"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return 0
	}
	return cc.RoughnessFactor
}

// IsModelFile reports whether path names a file the loader can open.
func IsModelFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".glb" || ext == ".gltf"
}
