// Package glsllib embeds the fixed GLSL sources every compiled scene is built from.
package glsllib

import (
	_ "embed"
	"sync"

	"github.com/soypat/sdfwalk/glbuild"
)

//go:embed header.glsl
var headerSrc []byte

// Header returns the fragment shader preamble: version directive, uniforms
// (aspect, fov, cam, cam_pos, light, time) and the INFINITY constant.
func Header() []byte { return headerSrc }

//go:embed library.glsl
var librarySrc []byte

// Library returns the primitive, combinator and positional transform
// functions generated code calls into, such as:
//
//	float sphere(float r, vec3 p)
//	vec4 csd_union(vec4 a, vec4 b)
//	vec3 at(float x, float y, float z, vec3 p)
func Library() []byte { return librarySrc }

//go:embed footer.glsl
var footerSrc []byte

// Footer returns the raymarching main function. It expects
//
//	vec4 map_geometry(vec3 p)
//
// to be declared, and map_transparent as well when HAS_TRANSPARENT is defined.
func Footer() []byte { return footerSrc }

//go:embed vertex.glsl
var vertexSrc []byte

// Vertex returns the full screen quad vertex shader.
func Vertex() []byte { return vertexSrc }

var (
	sigOnce sync.Once
	sigs    []glbuild.Signature
	sigErr  error
)

// LibrarySignatures returns the parsed signatures of all functions in [Library].
// The result is shared and must not be modified.
func LibrarySignatures() ([]glbuild.Signature, error) {
	sigOnce.Do(func() {
		sigs, sigErr = glbuild.ParseSignatures(librarySrc)
	})
	return sigs, sigErr
}
