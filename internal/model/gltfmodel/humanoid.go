package gltfmodel

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/qmuntal/gltf"

	"github.com/normanking/avatarcore/internal/avatar3d"
)

// humanoidBinding maps the closed bone and channel sets onto a document.
// A bone index of -1 means unmapped.
type humanoidBinding struct {
	bones       [avatar3d.BoneCount]int
	expressions [avatar3d.ChannelCount][]morphBind
}

func newBinding() humanoidBinding {
	var b humanoidBinding
	for i := range b.bones {
		b.bones[i] = -1
	}
	return b
}

// VRM 1.0 (VRMC_vrm) subset.
type vrm1Extension struct {
	Humanoid struct {
		HumanBones map[string]struct {
			Node int `json:"node"`
		} `json:"humanBones"`
	} `json:"humanoid"`
	Expressions struct {
		Preset map[string]vrm1Expression `json:"preset"`
		Custom map[string]vrm1Expression `json:"custom"`
	} `json:"expressions"`
}

type vrm1Expression struct {
	MorphTargetBinds []struct {
		Node   int     `json:"node"`
		Index  int     `json:"index"`
		Weight float64 `json:"weight"`
	} `json:"morphTargetBinds"`
}

// VRM 0.x subset. Bind weights are percentages.
type vrm0Extension struct {
	Humanoid struct {
		HumanBones []struct {
			Bone string `json:"bone"`
			Node int    `json:"node"`
		} `json:"humanBones"`
	} `json:"humanoid"`
	BlendShapeMaster struct {
		BlendShapeGroups []struct {
			Name       string `json:"name"`
			PresetName string `json:"presetName"`
			Binds      []struct {
				Mesh   int     `json:"mesh"`
				Index  int     `json:"index"`
				Weight float64 `json:"weight"`
			} `json:"binds"`
		} `json:"blendShapeGroups"`
	} `json:"blendShapeMaster"`
}

// VRM 0.x preset names that differ from the channel vocabulary.
var vrm0Presets = map[string]avatar3d.ExpressionChannel{
	"joy":    avatar3d.ChannelHappy,
	"sorrow": avatar3d.ChannelSad,
	"fun":    avatar3d.ChannelRelaxed,
	"a":      avatar3d.ChannelMouthOpen,
	"u":      avatar3d.ChannelOu,
	"lookup": avatar3d.ChannelLookUp,
}

// Common rig names used when a document has no humanoid extension.
var boneAliases = [avatar3d.BoneCount][]string{
	avatar3d.BoneHead:          {"J_Bip_C_Head", "mixamorig:Head"},
	avatar3d.BoneNeck:          {"J_Bip_C_Neck", "mixamorig:Neck"},
	avatar3d.BoneSpine:         {"J_Bip_C_Spine", "mixamorig:Spine"},
	avatar3d.BoneChest:         {"J_Bip_C_Chest", "mixamorig:Spine1", "upperChest"},
	avatar3d.BoneLeftUpperArm:  {"J_Bip_L_UpperArm", "mixamorig:LeftArm", "upperarm_l"},
	avatar3d.BoneRightUpperArm: {"J_Bip_R_UpperArm", "mixamorig:RightArm", "upperarm_r"},
}

var channelAliases = map[string]avatar3d.ExpressionChannel{
	"joy":        avatar3d.ChannelHappy,
	"sorrow":     avatar3d.ChannelSad,
	"fun":        avatar3d.ChannelRelaxed,
	"a":          avatar3d.ChannelMouthOpen,
	"mouthopen":  avatar3d.ChannelMouthOpen,
	"jawopen":    avatar3d.ChannelMouthOpen,
	"u":          avatar3d.ChannelOu,
	"eyesclosed": avatar3d.ChannelBlink,
}

func hasExtension(doc *gltf.Document, name string) bool {
	if doc.Extensions == nil {
		return false
	}
	_, ok := doc.Extensions[name]
	return ok
}

// decodeExtension re-encodes whatever the decoder stored (raw JSON for
// unregistered extensions, or a generic map) into v.
func decodeExtension(doc *gltf.Document, name string, v any) error {
	raw, err := json.Marshal(doc.Extensions[name])
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func bindVRM1(doc *gltf.Document) (humanoidBinding, error) {
	var ext vrm1Extension
	if err := decodeExtension(doc, SourceVRM1, &ext); err != nil {
		return humanoidBinding{}, err
	}

	b := newBinding()
	for name, hb := range ext.Humanoid.HumanBones {
		if bone := avatar3d.BoneFromName(name); bone >= 0 {
			b.bones[bone] = hb.Node
		}
	}

	add := func(name string, e vrm1Expression) {
		ch := avatar3d.ChannelFromName(name)
		if ch < 0 || len(b.expressions[ch]) > 0 {
			return
		}
		for _, mb := range e.MorphTargetBinds {
			if mb.Node < 0 || mb.Node >= len(doc.Nodes) || doc.Nodes[mb.Node].Mesh == nil {
				continue
			}
			b.expressions[ch] = append(b.expressions[ch], morphBind{
				mesh:   *doc.Nodes[mb.Node].Mesh,
				index:  mb.Index,
				weight: mb.Weight,
			})
		}
	}
	for name, e := range ext.Expressions.Preset {
		add(name, e)
	}
	for name, e := range ext.Expressions.Custom {
		add(name, e)
	}
	return b, nil
}

func bindVRM0(doc *gltf.Document) (humanoidBinding, error) {
	var ext vrm0Extension
	if err := decodeExtension(doc, SourceVRM0, &ext); err != nil {
		return humanoidBinding{}, err
	}

	b := newBinding()
	for _, hb := range ext.Humanoid.HumanBones {
		if bone := avatar3d.BoneFromName(hb.Bone); bone >= 0 {
			b.bones[bone] = hb.Node
		}
	}

	for _, g := range ext.BlendShapeMaster.BlendShapeGroups {
		ch, ok := vrm0Presets[strings.ToLower(g.PresetName)]
		if !ok {
			ch = avatar3d.ChannelFromName(g.PresetName)
		}
		if ch < 0 {
			ch = avatar3d.ChannelFromName(g.Name)
		}
		if ch < 0 || len(b.expressions[ch]) > 0 {
			continue
		}
		for _, bind := range g.Binds {
			b.expressions[ch] = append(b.expressions[ch], morphBind{
				mesh:   bind.Mesh,
				index:  bind.Index,
				weight: bind.Weight / 100,
			})
		}
	}

	fillBonesByName(doc, &b)
	return b, nil
}

func bindByName(doc *gltf.Document) humanoidBinding {
	b := newBinding()
	fillBonesByName(doc, &b)

	for mi, mesh := range doc.Meshes {
		for ti, name := range targetNames(mesh) {
			ch := avatar3d.ChannelFromName(name)
			if ch < 0 {
				alias, ok := channelAliases[strings.ToLower(name)]
				if !ok {
					continue
				}
				ch = alias
			}
			b.expressions[ch] = append(b.expressions[ch], morphBind{mesh: mi, index: ti, weight: 1})
		}
	}
	return b
}

// fillBonesByName maps still-unmapped bones from node names.
func fillBonesByName(doc *gltf.Document, b *humanoidBinding) {
	for bone := avatar3d.Bone(0); bone < avatar3d.BoneCount; bone++ {
		if b.bones[bone] >= 0 {
			continue
		}
		names := append([]string{bone.String()}, boneAliases[bone]...)
	search:
		for i, n := range doc.Nodes {
			for _, want := range names {
				if strings.EqualFold(n.Name, want) {
					b.bones[bone] = i
					break search
				}
			}
		}
	}
}

// targetNames reads the conventional mesh.extras.targetNames list.
func targetNames(mesh *gltf.Mesh) []string {
	if mesh == nil || mesh.Extras == nil {
		return nil
	}
	raw, err := json.Marshal(mesh.Extras)
	if err != nil {
		return nil
	}
	var extras struct {
		TargetNames []string `json:"targetNames"`
	}
	if err := json.Unmarshal(raw, &extras); err != nil {
		return nil
	}
	return extras.TargetNames
}
