//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Compute pipeline indices, in dispatch order. The lab grade compiles
// twice from one module: a pointwise pass before local contrast and a
// gather pass after it.
const (
	pipeGeometry = iota
	pipeNormalize
	pipeExposure
	pipeCLAHEHist
	pipeCLAHECDF
	pipeCLAHEApply
	pipeRetouch
	pipeLabPre
	pipeLabPost
	pipeToning
	pipeLayout
	pipeHistogram
	numPipelines
)

type pipelineSpec struct {
	label    string
	source   *string
	entry    string
	bindings []gputypes.BindGroupLayoutEntry
}

func configUniform(binding uint32) gputypes.BindGroupLayoutEntry {
	return gputypes.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: gputypes.ShaderStageCompute,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	}
}

func storageRO(binding uint32) gputypes.BindGroupLayoutEntry {
	return gputypes.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: gputypes.ShaderStageCompute,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
	}
}

func storageRW(binding uint32) gputypes.BindGroupLayoutEntry {
	return gputypes.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: gputypes.ShaderStageCompute,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
	}
}

func pipelineSpecs() [numPipelines]pipelineSpec {
	pointwise := []gputypes.BindGroupLayoutEntry{configUniform(0), storageRO(1), storageRW(2)}
	return [numPipelines]pipelineSpec{
		pipeGeometry:  {"geometry", &geometryShaderSource, "main", pointwise},
		pipeNormalize: {"normalize", &normalizeShaderSource, "main", pointwise},
		pipeExposure:  {"exposure", &exposureShaderSource, "main", pointwise},
		pipeCLAHEHist: {"clahe_hist", &claheHistShaderSource, "main", pointwise},
		pipeCLAHECDF:  {"clahe_cdf", &claheCDFShaderSource, "main", pointwise},
		pipeCLAHEApply: {"clahe_apply", &claheApplyShaderSource, "main",
			[]gputypes.BindGroupLayoutEntry{configUniform(0), storageRO(1), storageRO(2), storageRW(3)}},
		pipeRetouch: {"retouch", &retouchShaderSource, "main",
			[]gputypes.BindGroupLayoutEntry{configUniform(0), storageRO(1), storageRO(2), storageRO(3), storageRW(4)}},
		pipeLabPre:    {"lab_pre", &labShaderSource, "pre_main", pointwise},
		pipeLabPost:   {"lab_post", &labShaderSource, "post_main", pointwise},
		pipeToning:    {"toning", &toningShaderSource, "main", pointwise},
		pipeLayout:    {"layout", &layoutShaderSource, "main", pointwise},
		pipeHistogram: {"histogram", &histogramShaderSource, "main", pointwise},
	}
}

// stagePipelines holds the compiled pipeline and its layouts for every
// pass. Created once at engine init and reused across renders.
type stagePipelines struct {
	device    hal.Device
	modules   [numPipelines]hal.ShaderModule
	bgLayouts [numPipelines]hal.BindGroupLayout
	layouts   [numPipelines]hal.PipelineLayout
	pipelines [numPipelines]hal.ComputePipeline
}

func newStagePipelines(device hal.Device) (*stagePipelines, error) {
	sp := &stagePipelines{device: device}
	specs := pipelineSpecs()
	for i, spec := range specs {
		module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
			Label:  spec.label,
			Source: hal.ShaderSource{WGSL: *spec.source},
		})
		if err != nil {
			sp.destroyPartialInit(i)
			return nil, fmt.Errorf("compile %s shader: %w", spec.label, err)
		}
		sp.modules[i] = module

		bgl, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   spec.label + "_bind_layout",
			Entries: spec.bindings,
		})
		if err != nil {
			sp.destroyPartialInit(i + 1)
			return nil, fmt.Errorf("create %s bind group layout: %w", spec.label, err)
		}
		sp.bgLayouts[i] = bgl

		layout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
			Label:            spec.label + "_pipe_layout",
			BindGroupLayouts: []hal.BindGroupLayout{bgl},
		})
		if err != nil {
			sp.destroyPartialInit(i + 1)
			return nil, fmt.Errorf("create %s pipeline layout: %w", spec.label, err)
		}
		sp.layouts[i] = layout

		pipeline, err := device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
			Label:   spec.label + "_pipeline",
			Layout:  layout,
			Compute: hal.ComputeState{Module: module, EntryPoint: spec.entry},
		})
		if err != nil {
			sp.destroyPartialInit(i + 1)
			return nil, fmt.Errorf("create %s pipeline: %w", spec.label, err)
		}
		sp.pipelines[i] = pipeline
	}
	return sp, nil
}

func (sp *stagePipelines) destroyPartialInit(upTo int) {
	for i := 0; i < upTo; i++ {
		if sp.pipelines[i] != nil {
			sp.device.DestroyComputePipeline(sp.pipelines[i])
		}
		if sp.layouts[i] != nil {
			sp.device.DestroyPipelineLayout(sp.layouts[i])
		}
		if sp.bgLayouts[i] != nil {
			sp.device.DestroyBindGroupLayout(sp.bgLayouts[i])
		}
		if sp.modules[i] != nil {
			sp.device.DestroyShaderModule(sp.modules[i])
		}
	}
}

func (sp *stagePipelines) Close() {
	sp.destroyPartialInit(numPipelines)
}
