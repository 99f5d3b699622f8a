package negative

// Sub-configurations for each render stage. Field defaults follow the
// darkroom conventions: grade 2 paper, one stop of base exposure, 3:2
// autocrop.

// Exposure curve constants.
const (
	DensityMultiplier = 0.2 // density slider stops -> exposure shift
	GradeMultiplier   = 2.0 // grade slider -> curve slope
	DMax              = 4.0 // maximum paper density
	DisplayGamma      = 2.2
	TargetPaperRange  = 2.2
)

// ProcessConfig controls film-process interpretation and normalization.
type ProcessConfig struct {
	Mode                ProcessMode          `yaml:"process_mode"`
	AnalysisBuffer      float64              `yaml:"analysis_buffer"`
	E6Normalize         bool                 `yaml:"e6_normalize"`
	UseRollAverage      bool                 `yaml:"use_roll_average"`
	RollName            string               `yaml:"roll_name"`
	LockedBounds        NormalizationBounds  `yaml:"locked_bounds"`
	LocalBounds         NormalizationBounds  `yaml:"local_bounds"`
	LockedShadowCast    ShadowCastCorrection `yaml:"locked_shadow_cast"`
	LocalShadowCast     ShadowCastCorrection `yaml:"local_shadow_cast"`
	WhitePointOffset    float64              `yaml:"white_point_offset"`
	BlackPointOffset    float64              `yaml:"black_point_offset"`
	ShadowCastStrength  float64              `yaml:"shadow_cast_strength"`
	ShadowCastThreshold float64              `yaml:"shadow_cast_threshold"`
}

// DefaultProcessConfig returns C-41 defaults.
func DefaultProcessConfig() ProcessConfig {
	return ProcessConfig{
		Mode:                ProcessC41,
		AnalysisBuffer:      0.07,
		E6Normalize:         true,
		ShadowCastThreshold: 0.75,
	}
}

// ExposureConfig drives the photometric (characteristic curve) stage.
type ExposureConfig struct {
	Density          float64 `yaml:"density"`
	Grade            float64 `yaml:"grade"`
	Toe              float64 `yaml:"toe"`
	Shoulder         float64 `yaml:"shoulder"`
	ToeWidth         float64 `yaml:"toe_width"`
	ShoulderWidth    float64 `yaml:"shoulder_width"`
	ToeHardness      float64 `yaml:"toe_hardness"`
	ShoulderHardness float64 `yaml:"shoulder_hardness"`
	Shadows          float64 `yaml:"shadows"`
	Highlights       float64 `yaml:"highlights"`
	WBCyan           float64 `yaml:"wb_cyan"`
	WBMagenta        float64 `yaml:"wb_magenta"`
	WBYellow         float64 `yaml:"wb_yellow"`
	ShadowCyan       float64 `yaml:"shadow_cyan"`
	ShadowMagenta    float64 `yaml:"shadow_magenta"`
	ShadowYellow     float64 `yaml:"shadow_yellow"`
	HighlightCyan    float64 `yaml:"highlight_cyan"`
	HighlightMagenta float64 `yaml:"highlight_magenta"`
	HighlightYellow  float64 `yaml:"highlight_yellow"`
	UseCameraWB      bool    `yaml:"use_camera_wb"`
}

// DefaultExposureConfig returns neutral grade-2 exposure settings.
func DefaultExposureConfig() ExposureConfig {
	return ExposureConfig{
		Density:          1.0,
		Grade:            2.0,
		ToeWidth:         3.0,
		ShoulderWidth:    3.0,
		ToeHardness:      1.0,
		ShoulderHardness: 1.0,
	}
}

// GeometryConfig controls orientation and cropping.
type GeometryConfig struct {
	Rotation       int            `yaml:"rotation"` // quarter turns, clockwise
	FineRotation   float64        `yaml:"fine_rotation"`
	FlipH          bool           `yaml:"flip_h"`
	FlipV          bool           `yaml:"flip_v"`
	Autocrop       bool           `yaml:"autocrop"`
	AutocropOffset int            `yaml:"autocrop_offset"`
	AutocropRatio  string         `yaml:"autocrop_ratio"`
	ManualCrop     bool           `yaml:"manual_crop"`
	ManualCropRect [][2]float64   `yaml:"manual_crop_rect,omitempty"` // 4 normalized corners
	KeepFullFrame  bool           `yaml:"keep_full_frame"`
	AssistPoint    *[2]float64    `yaml:"assist_point,omitempty"` // normalized sample inside the frame
	AssistLuma     *float64       `yaml:"assist_luma,omitempty"`
}

// DefaultGeometryConfig returns autocrop-on 3:2 defaults.
func DefaultGeometryConfig() GeometryConfig {
	return GeometryConfig{
		Autocrop:       true,
		AutocropOffset: 2,
		AutocropRatio:  "3:2",
	}
}

// DustSpot is a manually marked defect in normalized coordinates of the
// source scan, before orientation.
type DustSpot struct {
	X    float64 `yaml:"x"`
	Y    float64 `yaml:"y"`
	Size float64 `yaml:"size"` // radius relative to the render reference size
}

// LocalAdjustment is a dodge/burn region painted as a point path.
type LocalAdjustment struct {
	Points       [][2]float64 `yaml:"points"` // normalized source coordinates
	Strength     float64      `yaml:"strength"`
	Radius       float64      `yaml:"radius"`
	Feather      float64      `yaml:"feather"`
	LumaRange    *[2]float64  `yaml:"luma_range,omitempty"`
	LumaSoftness float64      `yaml:"luma_softness"`
}

// RetouchConfig controls dust removal and local corrections.
type RetouchConfig struct {
	DustRemove       bool              `yaml:"dust_remove"`
	DustThreshold    float64           `yaml:"dust_threshold"`
	DustSize         float64           `yaml:"dust_size"`
	ManualSpots      []DustSpot        `yaml:"manual_spots,omitempty"`
	LocalAdjustments []LocalAdjustment `yaml:"local_adjustments,omitempty"`
}

// DefaultRetouchConfig returns retouching disabled.
func DefaultRetouchConfig() RetouchConfig {
	return RetouchConfig{
		DustThreshold: 0.12,
		DustSize:      2.0,
	}
}

// LabConfig controls color grading in LAB space.
type LabConfig struct {
	ColorSeparation float64    `yaml:"color_separation"`
	Saturation      float64    `yaml:"saturation"`
	CLAHEStrength   float64    `yaml:"clahe_strength"`
	Sharpen         float64    `yaml:"sharpen"`
	ChromaDenoise   float64    `yaml:"chroma_denoise"`
	Vibrance        float64    `yaml:"vibrance"`
	CrosstalkMatrix *[9]float64 `yaml:"crosstalk_matrix,omitempty"` // nil -> per-process default
}

// DefaultLabConfig returns neutral color settings with light sharpening.
func DefaultLabConfig() LabConfig {
	return LabConfig{
		ColorSeparation: 1.0,
		Saturation:      1.0,
		Sharpen:         0.25,
		Vibrance:        1.0,
	}
}

// ToningConfig controls chemical toning emulation and paper tint.
type ToningConfig struct {
	SeleniumStrength float64 `yaml:"selenium_strength"`
	SepiaStrength    float64 `yaml:"sepia_strength"`
	PaperProfile     string  `yaml:"paper_profile"`
}

// DefaultToningConfig returns untoned neutral paper.
func DefaultToningConfig() ToningConfig {
	return ToningConfig{PaperProfile: PaperNone}
}

// ExportFormat selects the output encoder.
type ExportFormat string

const (
	FormatJPEG ExportFormat = "JPEG"
	FormatTIFF ExportFormat = "TIFF"
	FormatPNG  ExportFormat = "PNG"
)

// ExportConfig controls print layout and file output.
type ExportConfig struct {
	Path            string       `yaml:"export_path"`
	Format          ExportFormat `yaml:"export_format"`
	PaperRatio      string       `yaml:"paper_aspect_ratio"`
	PrintSize       float64      `yaml:"print_size"` // long edge, centimeters
	DPI             int          `yaml:"dpi"`
	BorderSize      float64      `yaml:"border_size"` // centimeters
	BorderColor     string       `yaml:"border_color"`
	UseOriginalRes  bool         `yaml:"use_original_res"`
	FilenamePattern string       `yaml:"filename_pattern"`
}

// DefaultExportConfig returns a 30 cm JPEG print with no border.
func DefaultExportConfig() ExportConfig {
	return ExportConfig{
		Format:          FormatJPEG,
		PaperRatio:      RatioOriginal,
		PrintSize:       30.0,
		DPI:             300,
		BorderColor:     "#ffffff",
		FilenamePattern: "{name}_print",
	}
}

// Paper aspect ratio names accepted by ExportConfig and GeometryConfig.
const (
	RatioOriginal = "Original"
	RatioFree     = "Free"
)

// AspectRatios lists the selectable paper ratios, horizontal and vertical.
var AspectRatios = []string{
	RatioFree, RatioOriginal,
	"3:2", "4:3", "5:4", "6:7", "1:1", "65:24",
	"2:3", "3:4", "4:5", "7:6", "24:65",
}
