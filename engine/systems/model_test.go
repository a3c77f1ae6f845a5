package systems

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/spaghettifunk/dubu/engine/core"
	"github.com/spaghettifunk/dubu/engine/math"
	"github.com/spaghettifunk/dubu/engine/renderer/metadata"
	"github.com/spaghettifunk/dubu/engine/renderer/renderertest"
	"github.com/spaghettifunk/dubu/engine/resources"
)

type fakeImporter struct {
	scene *resources.Scene
	err   error
	calls int
}

func (fi *fakeImporter) Import(path string) (*resources.Scene, error) {
	fi.calls++
	return fi.scene, fi.err
}

func pngBytes(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func quadMesh(name string, material uint32) *resources.SceneMesh {
	return &resources.SceneMesh{
		Name: name,
		Positions: []math.Vec3{
			{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 0}, {X: 0, Y: 1, Z: 0},
		},
		Normals: []math.Vec3{
			{Z: 1}, {Z: 1}, {Z: 1}, {Z: 1},
		},
		TexCoords: []math.Vec2{
			{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1},
		},
		Faces:         [][3]uint32{{0, 1, 2}, {0, 2, 3}},
		MaterialIndex: material,
	}
}

// testScene has two materials sharing one compressed base colour texture;
// the second also has a raw normal map.
func testScene(t *testing.T) *resources.Scene {
	return &resources.Scene{
		Meshes: []*resources.SceneMesh{
			quadMesh("first", 0),
			quadMesh("second", 1),
		},
		Materials: []*resources.SceneMaterial{
			{
				Name: "painted",
				Textures: map[resources.TextureSlot]string{
					resources.TextureSlotBaseColor: "*0",
				},
			},
			{
				Name: "bumpy",
				Textures: map[resources.TextureSlot]string{
					resources.TextureSlotBaseColor: "*0",
					resources.TextureSlotNormal:    "normal.raw",
				},
			},
		},
		Textures: map[string]*resources.EmbeddedTexture{
			"*0": {
				FormatHint: "image/png",
				Data:       pngBytes(t, 2, 2, color.NRGBA{R: 255, A: 255}),
			},
			"normal.raw": {
				Width:  2,
				Height: 1,
				Data:   []byte{128, 128, 255, 255, 128, 128, 255, 255},
			},
		},
	}
}

func newConfig(backend *renderertest.Backend, importer *fakeImporter) ModelConfig {
	return ModelConfig{
		Path:                "test.glb",
		Backend:             backend,
		Importer:            importer,
		DescriptorPool:      &metadata.DescriptorPool{MaxSets: 16},
		DescriptorSetLayout: &metadata.DescriptorSetLayout{BindingCount: uint32(resources.TextureSlotCount)},
	}
}

func bindings(set *metadata.DescriptorSet) map[uint32]*metadata.Texture {
	return set.InternalData.(*renderertest.DescriptorSet).Bindings
}

func TestLoadModel(t *testing.T) {
	backend := renderertest.New()
	importer := &fakeImporter{scene: testScene(t)}

	m, err := LoadModel(newConfig(backend, importer))
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	defer m.Destroy()

	if importer.calls != 1 {
		t.Errorf("importer called %d times, want 1", importer.calls)
	}
	if got := len(m.Meshes()); got != 2 {
		t.Fatalf("got %d meshes, want 2", got)
	}
	if got := len(m.Materials()); got != 2 {
		t.Fatalf("got %d materials, want 2", got)
	}
	// default + shared base colour + normal map
	if got := m.TextureCount(); got != 3 {
		t.Errorf("got %d textures, want 3", got)
	}
	if backend.TexturesCreated != 3 {
		t.Errorf("backend created %d textures, want 3", backend.TexturesCreated)
	}

	def := m.DefaultTexture()
	if def == nil {
		t.Fatal("default texture missing")
	}
	pixels := def.InternalData.(*renderertest.Texture).Pixels
	if def.Width != 1 || def.Height != 1 || !bytes.Equal(pixels, []byte{0xff, 0xff, 0xff, 0xff}) {
		t.Errorf("default texture = %dx%d %v, want 1x1 white", def.Width, def.Height, pixels)
	}

	base, _ := m.Texture("*0", metadata.TEXTURE_COLOR_SPACE_SRGB)
	normal, _ := m.Texture("normal.raw", metadata.TEXTURE_COLOR_SPACE_LINEAR)
	if base.ColorSpace != metadata.TEXTURE_COLOR_SPACE_SRGB {
		t.Errorf("base colour texture is %s, want srgb", base.ColorSpace)
	}
	if normal.ColorSpace != metadata.TEXTURE_COLOR_SPACE_LINEAR {
		t.Errorf("normal map is %s, want linear", normal.ColorSpace)
	}

	painted := bindings(m.Materials()[0].DescriptorSet)
	want := map[uint32]*metadata.Texture{0: base, 1: def, 2: def}
	for binding, tex := range want {
		if painted[binding] != tex {
			t.Errorf("painted binding %d is not %s", binding, tex.Name)
		}
	}
	bumpy := bindings(m.Materials()[1].DescriptorSet)
	want = map[uint32]*metadata.Texture{0: base, 1: def, 2: normal}
	for binding, tex := range want {
		if bumpy[binding] != tex {
			t.Errorf("bumpy binding %d is not %s", binding, tex.Name)
		}
	}

	if base.Width != 2 || base.Height != 2 {
		t.Errorf("decoded texture is %dx%d, want 2x2", base.Width, base.Height)
	}
	if got := base.InternalData.(*renderertest.Texture).Pixels[:4]; !bytes.Equal(got, []byte{255, 0, 0, 255}) {
		t.Errorf("decoded first texel = %v, want red", got)
	}
	if normal.Width != 2 || normal.Height != 1 {
		t.Errorf("raw texture is %dx%d, want 2x1", normal.Width, normal.Height)
	}
}

func TestLoadModelMeshBuffers(t *testing.T) {
	backend := renderertest.New()
	m, err := LoadModel(newConfig(backend, &fakeImporter{scene: testScene(t)}))
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	defer m.Destroy()

	mesh := m.Meshes()[0]
	if mesh.IndexCount != 6 {
		t.Errorf("IndexCount = %d, want 6", mesh.IndexCount)
	}
	if mesh.VertexBuffer.RenderBufferType != metadata.RENDERBUFFER_TYPE_VERTEX {
		t.Errorf("vertex buffer type = %s", mesh.VertexBuffer.RenderBufferType)
	}
	if mesh.IndexBuffer.RenderBufferType != metadata.RENDERBUFFER_TYPE_INDEX {
		t.Errorf("index buffer type = %s", mesh.IndexBuffer.RenderBufferType)
	}
	if got, want := mesh.VertexBuffer.TotalSize, uint64(4*metadata.VertexSize); got != want {
		t.Errorf("vertex buffer size = %d, want %d", got, want)
	}
	want := metadata.IndexBytes([]uint32{0, 1, 2, 0, 2, 3})
	if got := backend.Bytes(mesh.IndexBuffer); !bytes.Equal(got, want) {
		t.Errorf("index buffer = %v, want %v", got, want)
	}
}

func TestBuildVerticesMissingAttributes(t *testing.T) {
	sm := &resources.SceneMesh{
		Positions: []math.Vec3{{X: 1}, {Y: 2}},
		Faces:     [][3]uint32{{0, 1, 1}},
	}
	vertices := buildVertices(sm)
	if len(vertices) != 2 {
		t.Fatalf("got %d vertices, want 2", len(vertices))
	}
	for i, v := range vertices {
		if v.Position != sm.Positions[i] {
			t.Errorf("vertex %d position = %v", i, v.Position)
		}
		if v.Normal != (math.Vec3{}) || v.TexCoord != (math.Vec2{}) {
			t.Errorf("vertex %d should have zero normal and uv, got %v %v", i, v.Normal, v.TexCoord)
		}
	}
	if got := buildIndices(sm); len(got) != 3 {
		t.Errorf("got %d indices, want 3", len(got))
	}
}

func TestRecordCommands(t *testing.T) {
	backend := renderertest.New()
	m, err := LoadModel(newConfig(backend, &fakeImporter{scene: testScene(t)}))
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	defer m.Destroy()

	layout := &metadata.PipelineLayout{}
	existing := &metadata.DrawIndexed{IndexCount: 99, InstanceCount: 1}
	cmds := m.RecordCommands(layout, []metadata.DrawCommand{existing})

	if len(cmds) != 1+4*len(m.Meshes()) {
		t.Fatalf("got %d commands, want %d", len(cmds), 1+4*len(m.Meshes()))
	}
	if cmds[0] != existing {
		t.Error("RecordCommands must append to the existing commands")
	}

	for i, mesh := range m.Meshes() {
		seq := cmds[1+i*4 : 1+(i+1)*4]

		sets, ok := seq[0].(*metadata.BindDescriptorSets)
		if !ok {
			t.Fatalf("mesh %d: command 0 is %T", i, seq[0])
		}
		if sets.FirstSet != 1 || sets.PipelineLayout != layout || sets.BindPoint != metadata.PIPELINE_BIND_POINT_GRAPHICS {
			t.Errorf("mesh %d: bad descriptor bind %+v", i, sets)
		}
		if len(sets.DescriptorSets) != 1 || sets.DescriptorSets[0] != m.Materials()[mesh.MaterialIndex].DescriptorSet {
			t.Errorf("mesh %d: bound the wrong material set", i)
		}

		vb, ok := seq[1].(*metadata.BindVertexBuffers)
		if !ok {
			t.Fatalf("mesh %d: command 1 is %T", i, seq[1])
		}
		if len(vb.Buffers) != 1 || vb.Buffers[0] != mesh.VertexBuffer || vb.Offsets[0] != 0 {
			t.Errorf("mesh %d: bad vertex bind %+v", i, vb)
		}

		ib, ok := seq[2].(*metadata.BindIndexBuffer)
		if !ok {
			t.Fatalf("mesh %d: command 2 is %T", i, seq[2])
		}
		if ib.Buffer != mesh.IndexBuffer || ib.Offset != 0 || ib.IndexType != metadata.INDEX_TYPE_UINT32 {
			t.Errorf("mesh %d: bad index bind %+v", i, ib)
		}

		draw, ok := seq[3].(*metadata.DrawIndexed)
		if !ok {
			t.Fatalf("mesh %d: command 3 is %T", i, seq[3])
		}
		if draw.IndexCount != mesh.IndexCount || draw.InstanceCount != 1 {
			t.Errorf("mesh %d: bad draw %+v", i, draw)
		}
	}
}

func TestLoadModelImportError(t *testing.T) {
	backend := renderertest.New()
	importErr := errors.New("unexpected end of file")

	m, err := LoadModel(newConfig(backend, &fakeImporter{err: importErr}))
	if m != nil {
		t.Error("expected no model on import failure")
	}
	if !errors.Is(err, core.ErrModelImport) {
		t.Errorf("err = %v, want ErrModelImport", err)
	}
	if !errors.Is(err, importErr) {
		t.Errorf("err = %v, want the importer error wrapped", err)
	}
	if backend.Live() != 0 {
		t.Errorf("%d resources leaked", backend.Live())
	}
}

func TestLoadModelUnsupportedExtension(t *testing.T) {
	cfg := newConfig(renderertest.New(), nil)
	cfg.Importer = nil
	cfg.Path = "model.fbx"

	if _, err := LoadModel(cfg); !errors.Is(err, core.ErrModelImport) {
		t.Errorf("err = %v, want ErrModelImport", err)
	}
}

func TestLoadModelEmptyScene(t *testing.T) {
	backend := renderertest.New()
	m, err := LoadModel(newConfig(backend, &fakeImporter{scene: &resources.Scene{}}))
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	if len(m.Meshes()) != 0 || len(m.Materials()) != 0 {
		t.Error("expected an empty model")
	}
	if m.DefaultTexture() == nil || m.TextureCount() != 1 {
		t.Error("default texture must exist even for an empty scene")
	}
	if cmds := m.RecordCommands(&metadata.PipelineLayout{}, nil); len(cmds) != 0 {
		t.Errorf("got %d commands for an empty model", len(cmds))
	}

	m.Destroy()
	if backend.Live() != 0 {
		t.Errorf("%d resources leaked", backend.Live())
	}
}

func TestLoadModelFailureReleasesResources(t *testing.T) {
	tests := []struct {
		name   string
		fail   string
		mutate func(*resources.Scene)
	}{
		{name: "default texture", fail: renderertest.OpTextureCreate},
		{name: "set allocation", fail: renderertest.OpSetAllocate},
		{name: "set write", fail: renderertest.OpSetWrite},
		{name: "mesh upload", fail: renderertest.OpBufferCopy},
		{name: "device buffer", fail: renderertest.OpDeviceCreate},
		{
			name: "material index",
			mutate: func(s *resources.Scene) {
				s.Meshes[1].MaterialIndex = 7
			},
		},
		{
			name: "missing texture",
			mutate: func(s *resources.Scene) {
				delete(s.Textures, "normal.raw")
			},
		},
		{
			name: "bad raw texture",
			mutate: func(s *resources.Scene) {
				s.Textures["normal.raw"].Data = []byte{1, 2, 3}
			},
		},
		{
			name: "bad compressed texture",
			mutate: func(s *resources.Scene) {
				s.Textures["*0"].Data = []byte("not an image")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := renderertest.New()
			if tt.fail != "" {
				backend.Fail[tt.fail] = true
			}
			scene := testScene(t)
			if tt.mutate != nil {
				tt.mutate(scene)
			}

			m, err := LoadModel(newConfig(backend, &fakeImporter{scene: scene}))
			if err == nil {
				m.Destroy()
				t.Fatal("expected an error")
			}
			if errors.Is(err, core.ErrModelImport) {
				t.Errorf("err = %v should not be an import error", err)
			}
			if backend.Live() != 0 {
				t.Errorf("%d resources leaked", backend.Live())
			}
		})
	}

	t.Run("material index error", func(t *testing.T) {
		scene := testScene(t)
		scene.Meshes[0].MaterialIndex = 2
		_, err := LoadModel(newConfig(renderertest.New(), &fakeImporter{scene: scene}))
		if !errors.Is(err, ErrMaterialIndex) {
			t.Errorf("err = %v, want ErrMaterialIndex", err)
		}
	})
}

func TestLoadTextureCache(t *testing.T) {
	backend := renderertest.New()
	m, err := LoadModel(newConfig(backend, &fakeImporter{scene: testScene(t)}))
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	defer m.Destroy()

	scene := testScene(t)
	created := backend.TexturesCreated
	material := &resources.SceneMaterial{
		Textures: map[resources.TextureSlot]string{resources.TextureSlotBaseColor: "*0"},
	}

	first, err := m.LoadTexture(scene, material, resources.TextureSlotBaseColor)
	if err != nil {
		t.Fatalf("LoadTexture: %v", err)
	}
	second, err := m.LoadTexture(scene, material, resources.TextureSlotBaseColor)
	if err != nil {
		t.Fatalf("LoadTexture: %v", err)
	}
	if first != second {
		t.Error("same path must resolve to the same texture")
	}
	if backend.TexturesCreated != created {
		t.Errorf("cache hit created %d new textures", backend.TexturesCreated-created)
	}

	def := m.DefaultTexture()
	got, err := m.LoadTexture(scene, material, resources.TextureSlotNormal)
	if err != nil {
		t.Fatalf("LoadTexture: %v", err)
	}
	if got != def {
		t.Errorf("unset slot resolved to %s, want default", got.Name)
	}
}

func TestLoadTextureColorSpaces(t *testing.T) {
	backend := renderertest.New()
	scene := testScene(t)
	// one image used as colour and as data
	scene.Materials[1].Textures[resources.TextureSlotMetallicRoughness] = "*0"

	m, err := LoadModel(newConfig(backend, &fakeImporter{scene: scene}))
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	defer m.Destroy()

	srgb, _ := m.Texture("*0", metadata.TEXTURE_COLOR_SPACE_SRGB)
	linear, ok := m.Texture("*0", metadata.TEXTURE_COLOR_SPACE_LINEAR)
	if !ok {
		t.Fatal("no linear upload of the shared image")
	}
	if srgb == linear {
		t.Fatal("colour and data uses share one texture")
	}

	bumpy := bindings(m.Materials()[1].DescriptorSet)
	want := map[uint32]metadata.TextureColorSpace{
		0: metadata.TEXTURE_COLOR_SPACE_SRGB,
		1: metadata.TEXTURE_COLOR_SPACE_LINEAR,
		2: metadata.TEXTURE_COLOR_SPACE_LINEAR,
	}
	for binding, cs := range want {
		if got := bumpy[binding].ColorSpace; got != cs {
			t.Errorf("binding %d is %s, want %s", binding, got, cs)
		}
	}
	// default + srgb and linear *0 + normal map
	if got := m.TextureCount(); got != 4 {
		t.Errorf("got %d textures, want 4", got)
	}
}

func TestDefaultTextureNotShadowedByPath(t *testing.T) {
	backend := renderertest.New()
	scene := testScene(t)
	scene.Materials[0].Textures[resources.TextureSlotBaseColor] = metadata.DEFAULT_TEXTURE_NAME
	scene.Textures[metadata.DEFAULT_TEXTURE_NAME] = &resources.EmbeddedTexture{
		Width:  1,
		Height: 1,
		Data:   []byte{0, 0, 255, 255},
	}

	m, err := LoadModel(newConfig(backend, &fakeImporter{scene: scene}))
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}

	named, ok := m.Texture(metadata.DEFAULT_TEXTURE_NAME, metadata.TEXTURE_COLOR_SPACE_SRGB)
	if !ok {
		t.Fatal("texture named after the default was not loaded")
	}
	if named == m.DefaultTexture() {
		t.Fatal("scene texture resolved to the default texture")
	}
	if got := named.InternalData.(*renderertest.Texture).Pixels; !bytes.Equal(got, []byte{0, 0, 255, 255}) {
		t.Errorf("texture pixels = %v, want the scene's blue texel", got)
	}
	painted := bindings(m.Materials()[0].DescriptorSet)
	if painted[0] != named || painted[1] != m.DefaultTexture() {
		t.Error("painted bindings mix up the scene texture and the default")
	}

	m.Destroy()
	if backend.Live() != 0 {
		t.Errorf("%d resources leaked", backend.Live())
	}
}
