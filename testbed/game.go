package testbed

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/kestrel/engine"
	"github.com/spaghettifunk/kestrel/engine/core"
	kmath "github.com/spaghettifunk/kestrel/engine/math"
	"github.com/spaghettifunk/kestrel/engine/renderer"
	"github.com/spaghettifunk/kestrel/engine/renderer/metadata"
	"github.com/spaghettifunk/kestrel/engine/renderer/vulkan"
)

const triangleCount = 3

type TestGame struct {
	*engine.Game
}

type gameState struct {
	width  uint32
	height uint32
	angle  float32

	vertexShader *renderer.ShaderVariation
	pixelShader  *renderer.ShaderVariation
	vertices     *renderer.VertexBuffer
	indices      *renderer.IndexBuffer
	camera       *renderer.ConstantBuffer
	objects      *renderer.ConstantBuffer
}

func NewTestGame(configPath string) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				ConfigPath:  configPath,
				Name:        "Kestrel Testbed",
				WatchConfig: true,
			},
			State: &gameState{},
		},
	}
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown
	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize(gfx renderer.Graphics, factory vulkan.ResourceFactory) error {
	core.LogInfo("initializing testbed...")
	s := g.state()

	var err error
	if s.vertexShader, err = renderer.LoadShaderVariation("assets/shaders/basic.vert.toml"); err != nil {
		return err
	}
	if s.pixelShader, err = renderer.LoadShaderVariation("assets/shaders/basic.frag.toml"); err != nil {
		return err
	}

	s.vertices, err = renderer.NewVertexBuffer(factory, []metadata.VertexElement{
		{Type: metadata.TypeVector3, Semantic: metadata.SemPosition},
		{Type: metadata.TypeVector4, Semantic: metadata.SemColor},
	}, 3)
	if err != nil {
		return err
	}
	if err := s.vertices.SetData(0, []float32{
		0.0, -0.5, 0.0, 1, 0, 0, 1,
		0.5, 0.5, 0.0, 0, 1, 0, 1,
		-0.5, 0.5, 0.0, 0, 0, 1, 1,
	}); err != nil {
		return err
	}

	if s.indices, err = renderer.NewIndexBuffer(factory, 3, false); err != nil {
		return err
	}
	if err := s.indices.SetData(0, []uint32{0, 1, 2}); err != nil {
		return err
	}

	sizes := s.vertexShader.ConstantBufferSizes()
	if sizes[0] == 0 || sizes[1] == 0 {
		return errors.New("basic vertex shader must declare camera and object buffers")
	}
	if s.camera, err = renderer.NewConstantBuffer(factory, sizes[0], 1); err != nil {
		return err
	}
	if s.objects, err = renderer.NewConstantBuffer(factory, sizes[1], triangleCount); err != nil {
		return err
	}
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	s := g.state()
	s.angle += float32(deltaTime)

	if s.height > 0 {
		aspect := float32(s.width) / float32(s.height)
		s.camera.SetMat4(0, mgl32.Ortho2D(-aspect, aspect, -1, 1))
	}
	for i := uint32(0); i < triangleCount; i++ {
		x := (float32(i) - 1) * 0.8
		model := mgl32.Translate3D(x, 0, 0).Mul4(mgl32.HomogRotate3DZ(s.angle * float32(i+1)))
		s.objects.SetObjectIndex(i)
		s.objects.SetMat4(0, model.Mul4(mgl32.Scale3D(0.5, 0.5, 1)))
	}
	return nil
}

func (g *TestGame) Render(gfx renderer.Graphics, deltaTime float64) error {
	s := g.state()

	gfx.Clear(metadata.ClearColor|metadata.ClearDepth, mgl32.Vec4{0.05, 0.05, 0.1, 1}, 1, 0)
	gfx.SetViewport(kmath.NewIntRect(0, 0, int32(gfx.Width()), int32(gfx.Height())), -1)
	gfx.SetCullMode(metadata.CullNone)
	gfx.SetShaders(s.vertexShader, s.pixelShader)
	gfx.SetConstantBuffer(metadata.VertexShader, 0, s.camera)
	gfx.SetVertexBuffer(s.vertices)
	gfx.SetIndexBuffer(s.indices)

	for i := uint32(0); i < triangleCount; i++ {
		s.objects.SetObjectIndex(i)
		gfx.SetConstantBuffer(metadata.VertexShader, 1, s.objects)
		gfx.DrawIndexed(metadata.TriangleList, 0, s.indices.IndexCount(), 0)
	}
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	s := g.state()
	s.width, s.height = width, height
	return nil
}

func (g *TestGame) Shutdown() error {
	s := g.state()
	if s.vertices != nil {
		s.vertices.Destroy()
	}
	if s.indices != nil {
		s.indices.Destroy()
	}
	if s.camera != nil {
		s.camera.Destroy()
	}
	if s.objects != nil {
		s.objects.Destroy()
	}
	return nil
}
