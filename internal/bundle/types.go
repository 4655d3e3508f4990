package bundle

import (
	"errors"
	"fmt"
)

func fmtHex32(v uint32) string { return fmt.Sprintf("0x%08X", v) }

// Error kinds surfaced by the package. Callers test with errors.Is; richer
// context is wrapped around these sentinels.
var (
	// ErrInvalidFormat reports a failed magic, revision, platform or
	// structural sanity check while parsing a file.
	ErrInvalidFormat = errors.New("invalid bundle format")

	// ErrCorruptPayload reports a compressed payload that failed to
	// decompress or decompressed to the wrong size.
	ErrCorruptPayload = errors.New("corrupt resource payload")

	// ErrLogic reports invalid API use: duplicate IDs on add, missing IDs
	// on replace, oversized dependency lists, unsupported save combinations.
	ErrLogic = errors.New("invalid bundle operation")
)

// MagicVersion selects between the two incompatible container layouts.
type MagicVersion int

const (
	// BNDL is the legacy layout used across PC, Xbox 360 and PS3.
	BNDL MagicVersion = 1
	// BND2 is the modern PC-only layout.
	BND2 MagicVersion = 2
)

// Platform identifies the target console and fixes the byte order: files are
// big-endian unless the platform is PC.
type Platform uint32

const (
	PC      Platform = 1
	Xbox360 Platform = 2 << 24
	PS3     Platform = 3 << 24
)

// BigEndian reports whether on-disk multi-byte values use big-endian order.
func (p Platform) BigEndian() bool { return p != PC }

// legacyBlockCount is the number of data-block slots a legacy file carries
// for the platform.
func (p Platform) legacyBlockCount() int {
	switch p {
	case Xbox360:
		return 5
	case PS3:
		return 6
	default:
		return 4
	}
}

func (p Platform) String() string {
	switch p {
	case PC:
		return "PC"
	case Xbox360:
		return "Xbox360"
	case PS3:
		return "PS3"
	}
	return "unknown"
}

// Flags is the bundle-level flag word. The two reserved bits are set in
// every observed modern file; their meaning is unknown. A bnd2 load keeps
// them as read, and a bnd2 save always writes both of them set.
type Flags uint32

const (
	Compressed             Flags = 1
	ReservedFlagA          Flags = 2
	ReservedFlagB          Flags = 4
	HasResourceStringTable Flags = 8
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// ResourceType tags a resource's payload format. The set below covers every
// named tag seen in shipped bundles; unknown values are carried verbatim, so
// the type is an open scalar rather than a closed set.
type ResourceType uint32

const (
	Raster                       ResourceType = 0x00
	Material                     ResourceType = 0x01
	TextFile                     ResourceType = 0x03
	VertexDesc                   ResourceType = 0x0A
	MaterialCRC32                ResourceType = 0x0B
	Renderable                   ResourceType = 0x0C
	MaterialTechnique            ResourceType = 0x0D
	TextureState                 ResourceType = 0x0E
	MaterialState                ResourceType = 0x0F
	ShaderProgramBuffer          ResourceType = 0x12
	ShaderParameter              ResourceType = 0x14
	Debug                        ResourceType = 0x16
	KdTree                       ResourceType = 0x17
	VoiceHierarchy               ResourceType = 0x18
	Snr                          ResourceType = 0x19
	InterpreterData              ResourceType = 0x1A
	AttribSysSchema              ResourceType = 0x1B
	AttribSysVault               ResourceType = 0x1C
	EntryList                    ResourceType = 0x1D
	AptDataHeaderType            ResourceType = 0x1E
	GuiPopup                     ResourceType = 0x1F
	Font                         ResourceType = 0x21
	LuaCode                      ResourceType = 0x22
	InstanceList                 ResourceType = 0x23
	CollisionMeshData            ResourceType = 0x24
	IDList                       ResourceType = 0x25
	InstanceCollisionList        ResourceType = 0x26
	Language                     ResourceType = 0x27
	SatNavTile                   ResourceType = 0x28
	SatNavTileDirectory          ResourceType = 0x29
	Model                        ResourceType = 0x2A
	RwColourCube                 ResourceType = 0x2B
	HudMessage                   ResourceType = 0x2C
	HudMessageList               ResourceType = 0x2D
	HudMessageSequence           ResourceType = 0x2E
	HudMessageSequenceDictionary ResourceType = 0x2F
	WorldPainter2D               ResourceType = 0x30
	PFXHookBundle                ResourceType = 0x31
	Shader                       ResourceType = 0x32
	ICETakeDictionary            ResourceType = 0x41
	VideoData                    ResourceType = 0x42
	PolygonSoupList              ResourceType = 0x43
	CommsToolListDefinition      ResourceType = 0x45
	CommsToolList                ResourceType = 0x46
	BinaryFile                   ResourceType = 0x50
	AnimationCollection          ResourceType = 0x51
	Registry                     ResourceType = 0xA000
	GenericRwacWaveContent       ResourceType = 0xA020
	GinsuWaveContent             ResourceType = 0xA021
	AemsBank                     ResourceType = 0xA022
	Csis                         ResourceType = 0xA023
	Nicotine                     ResourceType = 0xA024
	Splicer                      ResourceType = 0xA025
	FreqContent                  ResourceType = 0xA026
	VoiceHierarchyCollection     ResourceType = 0xA027
	GenericRwacReverbIRContent   ResourceType = 0xA028
	SnapshotData                 ResourceType = 0xA029
	ZoneList                     ResourceType = 0xB000
	LoopModel                    ResourceType = 0x10000
	AISections                   ResourceType = 0x10001
	TrafficData                  ResourceType = 0x10002
	Trigger                      ResourceType = 0x10003
	DeformationModel             ResourceType = 0x10004
	VehicleList                  ResourceType = 0x10005
	GraphicsSpec                 ResourceType = 0x10006
	PhysicsSpec                  ResourceType = 0x10007
	ParticleDescriptionCollection ResourceType = 0x10008
	WheelList                    ResourceType = 0x10009
	WheelGraphicsSpec            ResourceType = 0x1000A
	TextureNameMap               ResourceType = 0x1000B
	ICEList                      ResourceType = 0x1000C
	ICEData                      ResourceType = 0x1000D
	Progression                  ResourceType = 0x1000E
	PropPhysics                  ResourceType = 0x1000F
	PropGraphicsList             ResourceType = 0x10010
	PropInstanceData             ResourceType = 0x10011
	BrnEnvironmentKeyframe       ResourceType = 0x10012
	BrnEnvironmentTimeLine       ResourceType = 0x10013
	BrnEnvironmentDictionary     ResourceType = 0x10014
	GraphicsStub                 ResourceType = 0x10015
	StaticSoundMap               ResourceType = 0x10016
	StreetData                   ResourceType = 0x10018
	BrnVFXMeshCollection         ResourceType = 0x10019
	MassiveLookupTable           ResourceType = 0x1001A
	VFXPropCollection            ResourceType = 0x1001B
	StreamedDeformationSpec      ResourceType = 0x1001C
	ParticleDescription          ResourceType = 0x1001D
	PlayerCarColours             ResourceType = 0x1001E
	ChallengeList                ResourceType = 0x1001F
	FlaptFile                    ResourceType = 0x10020
	ProfileUpgrade               ResourceType = 0x10021
	VehicleAnimation             ResourceType = 0x10023
	BodypartRemapping            ResourceType = 0x10024
	LUAList                      ResourceType = 0x10025
	LUAScript                    ResourceType = 0x10026
)

var resourceTypeNames = map[ResourceType]string{
	Raster: "Raster", Material: "Material", TextFile: "TextFile",
	VertexDesc: "VertexDesc", MaterialCRC32: "MaterialCRC32",
	Renderable: "Renderable", MaterialTechnique: "MaterialTechnique",
	TextureState: "TextureState", MaterialState: "MaterialState",
	ShaderProgramBuffer: "ShaderProgramBuffer", ShaderParameter: "ShaderParameter",
	Debug: "Debug", KdTree: "KdTree", VoiceHierarchy: "VoiceHierarchy",
	Snr: "Snr", InterpreterData: "InterpreterData",
	AttribSysSchema: "AttribSysSchema", AttribSysVault: "AttribSysVault",
	EntryList: "EntryList", AptDataHeaderType: "AptDataHeaderType",
	GuiPopup: "GuiPopup", Font: "Font", LuaCode: "LuaCode",
	InstanceList: "InstanceList", CollisionMeshData: "CollisionMeshData",
	IDList: "IDList", InstanceCollisionList: "InstanceCollisionList",
	Language: "Language", SatNavTile: "SatNavTile",
	SatNavTileDirectory: "SatNavTileDirectory", Model: "Model",
	RwColourCube: "RwColourCube", HudMessage: "HudMessage",
	HudMessageList: "HudMessageList", HudMessageSequence: "HudMessageSequence",
	HudMessageSequenceDictionary: "HudMessageSequenceDictionary",
	WorldPainter2D: "WorldPainter2D", PFXHookBundle: "PFXHookBundle",
	Shader: "Shader", ICETakeDictionary: "ICETakeDictionary",
	VideoData: "VideoData", PolygonSoupList: "PolygonSoupList",
	CommsToolListDefinition: "CommsToolListDefinition",
	CommsToolList:           "CommsToolList", BinaryFile: "BinaryFile",
	AnimationCollection: "AnimationCollection", Registry: "Registry",
	GenericRwacWaveContent: "GenericRwacWaveContent",
	GinsuWaveContent:       "GinsuWaveContent", AemsBank: "AemsBank",
	Csis: "Csis", Nicotine: "Nicotine", Splicer: "Splicer",
	FreqContent:              "FreqContent",
	VoiceHierarchyCollection: "VoiceHierarchyCollection",
	GenericRwacReverbIRContent: "GenericRwacReverbIRContent",
	SnapshotData:               "SnapshotData", ZoneList: "ZoneList",
	LoopModel: "LoopModel", AISections: "AISections",
	TrafficData: "TrafficData", Trigger: "Trigger",
	DeformationModel: "DeformationModel", VehicleList: "VehicleList",
	GraphicsSpec: "GraphicsSpec", PhysicsSpec: "PhysicsSpec",
	ParticleDescriptionCollection: "ParticleDescriptionCollection",
	WheelList:                     "WheelList",
	WheelGraphicsSpec:             "WheelGraphicsSpec",
	TextureNameMap:                "TextureNameMap", ICEList: "ICEList",
	ICEData: "ICEData", Progression: "Progression",
	PropPhysics: "PropPhysics", PropGraphicsList: "PropGraphicsList",
	PropInstanceData:       "PropInstanceData",
	BrnEnvironmentKeyframe: "BrnEnvironmentKeyframe",
	BrnEnvironmentTimeLine: "BrnEnvironmentTimeLine",
	BrnEnvironmentDictionary: "BrnEnvironmentDictionary",
	GraphicsStub:             "GraphicsStub", StaticSoundMap: "StaticSoundMap",
	StreetData: "StreetData", BrnVFXMeshCollection: "BrnVFXMeshCollection",
	MassiveLookupTable: "MassiveLookupTable",
	VFXPropCollection:  "VFXPropCollection",
	StreamedDeformationSpec: "StreamedDeformationSpec",
	ParticleDescription:     "ParticleDescription",
	PlayerCarColours:        "PlayerCarColours", ChallengeList: "ChallengeList",
	FlaptFile: "FlaptFile", ProfileUpgrade: "ProfileUpgrade",
	VehicleAnimation: "VehicleAnimation", BodypartRemapping: "BodypartRemapping",
	LUAList: "LUAList", LUAScript: "LUAScript",
}

// String returns the well-known tag name, or the raw hex value for tags not
// in the named set.
func (t ResourceType) String() string {
	if name, ok := resourceTypeNames[t]; ok {
		return name
	}
	return fmtHex32(uint32(t))
}

// ResourceTypeByName resolves a well-known tag name back to its value.
func ResourceTypeByName(name string) (ResourceType, bool) {
	for t, n := range resourceTypeNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}

// ParsePlatform resolves a platform name used in manifests and flags.
func ParsePlatform(name string) (Platform, bool) {
	switch name {
	case "PC", "pc":
		return PC, true
	case "Xbox360", "xbox360", "x360":
		return Xbox360, true
	case "PS3", "ps3":
		return PS3, true
	}
	return 0, false
}

// Block is one of the three parallel payload slots of a resource. The
// alignment is kept apart from the size in memory; the codecs merge it into
// the top nibble of the size word (modern) or a parallel word (legacy) on
// disk.
type Block struct {
	UncompressedSize      uint32
	UncompressedAlignment uint32
	CompressedSize        uint32
	Data                  []byte
}

// Empty reports whether the slot carries no payload.
func (b *Block) Empty() bool { return b.Data == nil }

// ResourceInfo is the per-resource metadata record.
type ResourceInfo struct {
	// Checksum is opaque: stored as 64-bit on disk, round-tripped verbatim,
	// zeroed when the resource is rebuilt through AddResource or
	// ReplaceResource.
	Checksum uint32

	// DependenciesOffset locates the dependency list: a byte offset into the
	// uncompressed block 0 for BND2, an absolute file offset for BNDL. Zero
	// when the resource has no dependencies.
	DependenciesOffset uint32

	ResourceType         ResourceType
	NumberOfDependencies uint16
}

// Resource is one typed entry of a bundle: metadata plus exactly three
// payload slots.
type Resource struct {
	Info   ResourceInfo
	Blocks [3]Block
}

// DebugInfo is the per-resource entry of the debug-name table.
type DebugInfo struct {
	Name     string
	TypeName string
}

// Dependency is a back-reference to another resource: its ID and the byte
// offset inside the owner's decoded block 0 where the reference appears.
type Dependency struct {
	ResourceID     uint32
	InternalOffset uint32
}

// EntryData is the editable view of a resource exchanged through GetData,
// AddResource and ReplaceResource: per-slot uncompressed payloads and
// alignments, plus the dependency list.
type EntryData struct {
	Blocks       [3][]byte
	Alignments   [3]uint32
	Dependencies []Dependency
}
