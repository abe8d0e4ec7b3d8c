package models

import (
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/taigrr/showroom/pkg/math3d"
)

// BoxDocument builds a single-node glTF document holding an axis-aligned box
// spanning min..max, with one PBR material. It serves as the demo asset and
// as a test fixture.
func BoxDocument(min, max math3d.Vec3, metalness, roughness float64) *gltf.Document {
	corners := func(face int) [4][3]float32 {
		lo := [3]float32{float32(min.X), float32(min.Y), float32(min.Z)}
		hi := [3]float32{float32(max.X), float32(max.Y), float32(max.Z)}
		switch face {
		case 0: // +X
			return [4][3]float32{{hi[0], lo[1], hi[2]}, {hi[0], lo[1], lo[2]}, {hi[0], hi[1], lo[2]}, {hi[0], hi[1], hi[2]}}
		case 1: // -X
			return [4][3]float32{{lo[0], lo[1], lo[2]}, {lo[0], lo[1], hi[2]}, {lo[0], hi[1], hi[2]}, {lo[0], hi[1], lo[2]}}
		case 2: // +Y
			return [4][3]float32{{lo[0], hi[1], hi[2]}, {hi[0], hi[1], hi[2]}, {hi[0], hi[1], lo[2]}, {lo[0], hi[1], lo[2]}}
		case 3: // -Y
			return [4][3]float32{{lo[0], lo[1], lo[2]}, {hi[0], lo[1], lo[2]}, {hi[0], lo[1], hi[2]}, {lo[0], lo[1], hi[2]}}
		case 4: // +Z
			return [4][3]float32{{lo[0], lo[1], hi[2]}, {hi[0], lo[1], hi[2]}, {hi[0], hi[1], hi[2]}, {lo[0], hi[1], hi[2]}}
		default: // -Z
			return [4][3]float32{{hi[0], lo[1], lo[2]}, {lo[0], lo[1], lo[2]}, {lo[0], hi[1], lo[2]}, {hi[0], hi[1], lo[2]}}
		}
	}
	faceNormals := [6][3]float32{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}}

	var (
		positions [][3]float32
		normals   [][3]float32
		indices   []uint16
	)
	for f := range 6 {
		base := uint16(len(positions))
		for _, c := range corners(f) {
			positions = append(positions, c)
			normals = append(normals, faceNormals[f])
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}

	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, positions)
	nrm := modeler.WriteNormal(doc, normals)
	idx := modeler.WriteIndices(doc, indices)

	doc.Materials = []*gltf.Material{{
		Name: "box",
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float64{0.8, 0.8, 0.8, 1},
			MetallicFactor:  gltf.Float(metalness),
			RoughnessFactor: gltf.Float(roughness),
		},
	}}
	doc.Meshes = []*gltf.Mesh{{
		Name: "box",
		Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(idx),
			Attributes: map[string]int{gltf.POSITION: pos, gltf.NORMAL: nrm},
			Material:   gltf.Index(0),
		}},
	}}
	doc.Nodes = []*gltf.Node{{Name: "box", Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)
	return doc
}

// SaveBox writes BoxDocument as a binary .glb file.
func SaveBox(path string, min, max math3d.Vec3, metalness, roughness float64) error {
	return gltf.SaveBinary(BoxDocument(min, max, metalness, roughness), path)
}
