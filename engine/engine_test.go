package engine

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/dubu/engine/config"
	"github.com/spaghettifunk/dubu/engine/core"
	"github.com/spaghettifunk/dubu/engine/math"
	"github.com/spaghettifunk/dubu/engine/renderer/metadata"
	"github.com/spaghettifunk/dubu/engine/renderer/renderertest"
	"github.com/spaghettifunk/dubu/engine/resources"
)

type sceneImporter struct {
	scene *resources.Scene
	err   error
}

func (si *sceneImporter) Import(path string) (*resources.Scene, error) {
	return si.scene, si.err
}

func triangleScene(meshes int) *resources.Scene {
	scene := &resources.Scene{
		Materials: []*resources.SceneMaterial{{Name: "plain"}},
	}
	for i := 0; i < meshes; i++ {
		scene.Meshes = append(scene.Meshes, &resources.SceneMesh{
			Name:      "triangle",
			Positions: []math.Vec3{{X: 0}, {X: 1}, {Y: 1}},
			Faces:     [][3]uint32{{0, 1, 2}},
		})
	}
	return scene
}

func newHost(backend *renderertest.Backend, importer *sceneImporter) *modelHost {
	return &modelHost{
		path:           "scene.gltf",
		backend:        backend,
		importer:       importer,
		pool:           &metadata.DescriptorPool{MaxSets: 8},
		setLayout:      &metadata.DescriptorSetLayout{BindingCount: uint32(resources.TextureSlotCount)},
		pipelineLayout: &metadata.PipelineLayout{},
		clock:          core.NewClock(),
	}
}

func TestModelHostLoad(t *testing.T) {
	backend := renderertest.New()
	importer := &sceneImporter{scene: triangleScene(2)}
	host := newHost(backend, importer)

	if err := host.load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	// four commands per mesh
	if got := len(host.DrawCommands()); got != 8 {
		t.Errorf("got %d draw commands, want 8", got)
	}

	host.release()
	if backend.Live() != 0 {
		t.Errorf("%d resources alive after release", backend.Live())
	}
	if host.DrawCommands() != nil {
		t.Error("draw commands kept after release")
	}
}

func TestModelHostReload(t *testing.T) {
	backend := renderertest.New()
	importer := &sceneImporter{scene: triangleScene(1)}
	host := newHost(backend, importer)

	if err := host.load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	first := host.model
	live := backend.Live()

	importer.scene = triangleScene(3)
	if err := host.load(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if host.model == first {
		t.Fatal("model not replaced")
	}
	if got := len(host.model.Meshes()); got != 3 {
		t.Errorf("got %d meshes, want 3", got)
	}

	// a broken file keeps the last good model
	current := host.model
	importer.err = errors.New("unexpected end of file")
	err := host.load()
	if !errors.Is(err, core.ErrModelImport) {
		t.Fatalf("got %v, want ErrModelImport", err)
	}
	if host.model != current {
		t.Error("failed reload replaced the model")
	}
	if len(host.DrawCommands()) != 12 {
		t.Errorf("got %d draw commands, want 12", len(host.DrawCommands()))
	}

	host.release()
	if backend.Live() != 0 {
		t.Errorf("%d resources alive after release, %d after first load", backend.Live(), live)
	}
}

// materialScene has one mesh per material.
func materialScene(materials int) *resources.Scene {
	scene := triangleScene(materials)
	scene.Materials = nil
	for i := 0; i < materials; i++ {
		scene.Materials = append(scene.Materials, &resources.SceneMaterial{Name: "plain"})
		scene.Meshes[i].MaterialIndex = uint32(i)
	}
	return scene
}

func TestModelHostReloadAtPoolCapacity(t *testing.T) {
	const maxMaterials = 4
	backend := renderertest.New()
	importer := &sceneImporter{scene: materialScene(maxMaterials)}

	host := newHost(backend, importer)
	host.pool = &metadata.DescriptorPool{MaxSets: materialPoolSets(maxMaterials)}
	if err := host.load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := host.load(); err != nil {
			t.Fatalf("reload %d of an unchanged model: %v", i, err)
		}
	}
	if got := backend.PoolSets(host.pool); got != maxMaterials {
		t.Errorf("%d sets allocated after reloads, want %d", got, maxMaterials)
	}

	// a pool sized for a single model cannot hold the reload
	single := newHost(backend, importer)
	single.pool = &metadata.DescriptorPool{MaxSets: maxMaterials}
	if err := single.load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	current := single.model
	if err := single.load(); !errors.Is(err, renderertest.ErrPoolExhausted) {
		t.Fatalf("got %v, want ErrPoolExhausted", err)
	}
	if single.model != current {
		t.Error("failed reload replaced the model")
	}
	if got := backend.PoolSets(single.pool); got != maxMaterials {
		t.Errorf("failed reload left %d sets, want %d", got, maxMaterials)
	}

	host.release()
	single.release()
	if backend.Live() != 0 {
		t.Errorf("%d resources alive after release", backend.Live())
	}
}

func TestRendererConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Application.Name = "viewer"
	cfg.Application.Version = "1.2.3"
	cfg.Instance.OptionalLayers = []string{"VK_LAYER_MANGOHUD_overlay"}
	cfg.Device.RequiredExtensions = []string{"VK_KHR_swapchain", "VK_KHR_maintenance1"}
	cfg.Device.RequireGeometryShader = false
	cfg.Model.MaxMaterials = 32

	rc, err := rendererConfig(cfg)
	if err != nil {
		t.Fatalf("rendererConfig: %v", err)
	}
	if rc.Framework.ApplicationName != "viewer" {
		t.Errorf("application name = %q", rc.Framework.ApplicationName)
	}
	// major << 22 | minor << 12 | patch
	if want := uint32(1<<22 | 2<<12 | 3); rc.Framework.ApplicationVersion != want {
		t.Errorf("application version = %#x, want %#x", rc.Framework.ApplicationVersion, want)
	}
	if !rc.Framework.Debug {
		t.Error("debug not carried over")
	}
	if len(rc.Framework.OptionalLayers) != 1 {
		t.Errorf("optional layers = %v", rc.Framework.OptionalLayers)
	}
	if rc.Device.GeometryShader {
		t.Error("geometry shader still required")
	}
	if len(rc.Device.DeviceExtensionNames) != 2 {
		t.Errorf("device extensions = %v", rc.Device.DeviceExtensionNames)
	}
	if rc.MaxMaterialSets != 64 {
		t.Errorf("material pool sets = %d, want room for two models of 32 materials", rc.MaxMaterialSets)
	}

	cfg.Application.EngineVersion = "one"
	if _, err := rendererConfig(cfg); err == nil {
		t.Error("invalid engine version accepted")
	}
}

func TestStageString(t *testing.T) {
	if EngineStageRunning.String() != "running" {
		t.Errorf("got %q", EngineStageRunning.String())
	}
	if Stage(200).String() != "unknown" {
		t.Errorf("got %q", Stage(200).String())
	}
}
