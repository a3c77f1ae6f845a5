package loaders

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/spaghettifunk/dubu/engine/core"
	"github.com/spaghettifunk/dubu/engine/math"
	"github.com/spaghettifunk/dubu/engine/resources"
)

// SceneImporter parses a model file into engine-native scene data.
type SceneImporter interface {
	Import(path string) (*resources.Scene, error)
}

// NewSceneImporter picks an importer from the file extension.
func NewSceneImporter(path string) (SceneImporter, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gltf", ".glb":
		return &GLTFImporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported model format %q", filepath.Ext(path))
	}
}

// GLTFImporter reads glTF 2.0 files (.gltf and .glb).
//
// Every triangle primitive becomes one mesh. Primitives without indices are
// indexed sequentially, missing normals are generated and primitives without
// a material share a default material appended after the file's materials.
type GLTFImporter struct{}

const defaultMaterialName = "default"

func (gi *GLTFImporter) Import(path string) (*resources.Scene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, err
	}

	imp := &gltfImport{
		doc: doc,
		dir: filepath.Dir(path),
		scene: &resources.Scene{
			Textures: make(map[string]*resources.EmbeddedTexture),
		},
		defaultMaterial: -1,
	}
	if err := imp.materials(); err != nil {
		return nil, err
	}
	if err := imp.meshes(); err != nil {
		return nil, err
	}
	return imp.scene, nil
}

type gltfImport struct {
	doc   *gltf.Document
	dir   string
	scene *resources.Scene
	// index of the synthetic material, -1 until a primitive needs it
	defaultMaterial int
}

func (imp *gltfImport) materials() error {
	for i, mat := range imp.doc.Materials {
		sm := &resources.SceneMaterial{
			Name:     mat.Name,
			Textures: make(map[resources.TextureSlot]string),
		}
		if pbr := mat.PBRMetallicRoughness; pbr != nil {
			if pbr.BaseColorTexture != nil {
				if err := imp.bindTexture(sm, resources.TextureSlotBaseColor, int(pbr.BaseColorTexture.Index)); err != nil {
					return fmt.Errorf("material %d: %w", i, err)
				}
			}
			if pbr.MetallicRoughnessTexture != nil {
				if err := imp.bindTexture(sm, resources.TextureSlotMetallicRoughness, int(pbr.MetallicRoughnessTexture.Index)); err != nil {
					return fmt.Errorf("material %d: %w", i, err)
				}
			}
		}
		if mat.NormalTexture != nil && mat.NormalTexture.Index != nil {
			if err := imp.bindTexture(sm, resources.TextureSlotNormal, int(*mat.NormalTexture.Index)); err != nil {
				return fmt.Errorf("material %d: %w", i, err)
			}
		}
		imp.scene.Materials = append(imp.scene.Materials, sm)
	}
	return nil
}

// bindTexture resolves a glTF texture index into a texture path, loading
// the image data the first time the path is seen.
func (imp *gltfImport) bindTexture(sm *resources.SceneMaterial, slot resources.TextureSlot, textureIndex int) error {
	if textureIndex < 0 || textureIndex >= len(imp.doc.Textures) {
		return fmt.Errorf("%s texture index %d out of range", slot, textureIndex)
	}
	tex := imp.doc.Textures[textureIndex]
	if tex.Source == nil {
		// no image, the slot falls back to the default texture
		return nil
	}
	imageIndex := int(*tex.Source)
	if imageIndex < 0 || imageIndex >= len(imp.doc.Images) {
		return fmt.Errorf("%s image index %d out of range", slot, imageIndex)
	}
	img := imp.doc.Images[imageIndex]

	key := fmt.Sprintf("*%d", imageIndex)
	if img.URI != "" && !img.IsEmbeddedResource() {
		key = img.URI
	}
	sm.Textures[slot] = key
	if _, ok := imp.scene.Textures[key]; ok {
		return nil
	}

	data, err := imp.imageData(img)
	if err != nil {
		return fmt.Errorf("image %d: %w", imageIndex, err)
	}
	imp.scene.Textures[key] = &resources.EmbeddedTexture{
		Width:      uint32(len(data)),
		Height:     0,
		FormatHint: img.MimeType,
		Data:       data,
	}
	return nil
}

func (imp *gltfImport) imageData(img *gltf.Image) ([]byte, error) {
	switch {
	case img.BufferView != nil:
		idx := int(*img.BufferView)
		if idx < 0 || idx >= len(imp.doc.BufferViews) {
			return nil, fmt.Errorf("buffer view %d out of range", idx)
		}
		bv := imp.doc.BufferViews[idx]
		if int(bv.Buffer) >= len(imp.doc.Buffers) {
			return nil, fmt.Errorf("buffer view %d references buffer %d of %d", idx, bv.Buffer, len(imp.doc.Buffers))
		}
		buffer := imp.doc.Buffers[bv.Buffer]
		start, end := uint64(bv.ByteOffset), uint64(bv.ByteOffset)+uint64(bv.ByteLength)
		if start > end || end > uint64(len(buffer.Data)) {
			return nil, fmt.Errorf("buffer view %d exceeds its buffer", idx)
		}
		return buffer.Data[start:end], nil
	case img.IsEmbeddedResource():
		return img.MarshalData()
	case img.URI != "":
		// gltf.Open already unescaped the uri
		p := filepath.FromSlash(img.URI)
		if !filepath.IsLocal(p) {
			return nil, fmt.Errorf("image uri %q points outside the model directory", img.URI)
		}
		return os.ReadFile(filepath.Join(imp.dir, p))
	default:
		return nil, fmt.Errorf("image has neither uri nor buffer view")
	}
}

func (imp *gltfImport) meshes() error {
	for mi, mesh := range imp.doc.Meshes {
		for pi, prim := range mesh.Primitives {
			if prim.Mode != gltf.PrimitiveTriangles {
				core.LogWarn("Skipping primitive %d of mesh '%s': only triangle lists are supported.", pi, mesh.Name)
				continue
			}
			sm, err := imp.primitive(mesh.Name, prim)
			if err != nil {
				return fmt.Errorf("mesh %d primitive %d: %w", mi, pi, err)
			}
			imp.scene.Meshes = append(imp.scene.Meshes, sm)
		}
	}
	return nil
}

func (imp *gltfImport) accessor(index int) (*gltf.Accessor, error) {
	if index < 0 || index >= len(imp.doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", index)
	}
	return imp.doc.Accessors[index], nil
}

func (imp *gltfImport) primitive(name string, prim *gltf.Primitive) (*resources.SceneMesh, error) {
	posIndex, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, fmt.Errorf("missing %s attribute", gltf.POSITION)
	}
	acr, err := imp.accessor(int(posIndex))
	if err != nil {
		return nil, err
	}
	positions, err := modeler.ReadPosition(imp.doc, acr, nil)
	if err != nil {
		return nil, fmt.Errorf("reading positions: %w", err)
	}

	sm := &resources.SceneMesh{
		Name:      name,
		Positions: make([]math.Vec3, len(positions)),
	}
	for i, p := range positions {
		sm.Positions[i] = math.NewVec3(p[0], p[1], p[2])
	}

	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		acr, err := imp.accessor(int(idx))
		if err != nil {
			return nil, err
		}
		normals, err := modeler.ReadNormal(imp.doc, acr, nil)
		if err != nil {
			return nil, fmt.Errorf("reading normals: %w", err)
		}
		if len(normals) != len(positions) {
			return nil, fmt.Errorf("%d normals for %d positions", len(normals), len(positions))
		}
		sm.Normals = make([]math.Vec3, len(normals))
		for i, n := range normals {
			sm.Normals[i] = math.NewVec3(n[0], n[1], n[2])
		}
	}

	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		acr, err := imp.accessor(int(idx))
		if err != nil {
			return nil, err
		}
		uvs, err := modeler.ReadTextureCoord(imp.doc, acr, nil)
		if err != nil {
			return nil, fmt.Errorf("reading texture coordinates: %w", err)
		}
		if len(uvs) != len(positions) {
			return nil, fmt.Errorf("%d texture coordinates for %d positions", len(uvs), len(positions))
		}
		sm.TexCoords = make([]math.Vec2, len(uvs))
		for i, uv := range uvs {
			sm.TexCoords[i] = math.Vec2{X: uv[0], Y: uv[1]}
		}
	}

	var indices []uint32
	if prim.Indices != nil {
		acr, err := imp.accessor(int(*prim.Indices))
		if err != nil {
			return nil, err
		}
		if indices, err = modeler.ReadIndices(imp.doc, acr, nil); err != nil {
			return nil, fmt.Errorf("reading indices: %w", err)
		}
	} else {
		indices = make([]uint32, len(positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	if sm.Faces, err = triangles(indices, uint32(len(positions))); err != nil {
		return nil, err
	}

	if sm.Normals == nil {
		sm.Normals = GenerateNormals(sm.Positions, sm.Faces)
	}

	if prim.Material != nil {
		material := int(*prim.Material)
		if material < 0 || material >= len(imp.doc.Materials) {
			return nil, fmt.Errorf("material %d out of range", material)
		}
		sm.MaterialIndex = uint32(material)
	} else {
		sm.MaterialIndex = imp.defaultMaterialIndex()
	}
	return sm, nil
}

func (imp *gltfImport) defaultMaterialIndex() uint32 {
	if imp.defaultMaterial < 0 {
		imp.defaultMaterial = len(imp.scene.Materials)
		imp.scene.Materials = append(imp.scene.Materials, &resources.SceneMaterial{
			Name:     defaultMaterialName,
			Textures: make(map[resources.TextureSlot]string),
		})
	}
	return uint32(imp.defaultMaterial)
}

func triangles(indices []uint32, vertexCount uint32) ([][3]uint32, error) {
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("index count %d is not a multiple of 3", len(indices))
	}
	faces := make([][3]uint32, len(indices)/3)
	for i := range faces {
		for j := 0; j < 3; j++ {
			idx := indices[i*3+j]
			if idx >= vertexCount {
				return nil, fmt.Errorf("index %d out of range for %d vertices", idx, vertexCount)
			}
			faces[i][j] = idx
		}
	}
	return faces, nil
}

// GenerateNormals computes smooth, area weighted vertex normals. Vertices
// not referenced by any face get a zero normal.
func GenerateNormals(positions []math.Vec3, faces [][3]uint32) []math.Vec3 {
	normals := make([]math.Vec3, len(positions))
	for _, f := range faces {
		a, b, c := positions[f[0]], positions[f[1]], positions[f[2]]
		// unnormalized: the length is twice the triangle area
		n := b.Sub(a).Cross(c.Sub(a))
		for _, idx := range f {
			normals[idx] = normals[idx].Add(n)
		}
	}
	for i := range normals {
		normals[i] = normals[i].Normalized()
	}
	return normals
}
