//go:build !nogl

package glview

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v3.2-core/gl"
)

// frameBinding is the uniform buffer binding point of the Frame block.
const frameBinding = 0

const vertexShader = `#version 150 core
in vec2 Position;
in vec2 UV;
layout(std140) uniform Frame {
	vec4 Transform;
};
out vec2 Frag_UV;
void main() {
	Frag_UV = UV;
	gl_Position = vec4(Position.x * Transform.x, Position.y * Transform.w, 0.0, 1.0);
}
`

const fragmentShader = `#version 150 core
uniform sampler2D Texture;
in vec2 Frag_UV;
out vec4 Out_Color;
void main() {
	Out_Color = vec4(texture(Texture, Frag_UV).rgb, 1.0);
}
`

// createProgram compiles and links the two stages.
func createProgram(vertProgram, fragProgram string) (uint32, error) {
	vertHandle := gl.CreateShader(gl.VERTEX_SHADER)
	fragHandle := gl.CreateShader(gl.FRAGMENT_SHADER)
	defer gl.DeleteShader(vertHandle)
	defer gl.DeleteShader(fragHandle)

	glShaderSource := func(handle uint32, source string) {
		csource, free := gl.Strs(source + "\x00")
		defer free()
		gl.ShaderSource(handle, 1, csource, nil)
	}
	glShaderSource(vertHandle, vertProgram)
	glShaderSource(fragHandle, fragProgram)

	gl.CompileShader(vertHandle)
	if log := getShaderCompileError(vertHandle); log != "" {
		return 0, fmt.Errorf("vertex shader: %s", log)
	}
	gl.CompileShader(fragHandle)
	if log := getShaderCompileError(fragHandle); log != "" {
		return 0, fmt.Errorf("fragment shader: %s", log)
	}

	handle := gl.CreateProgram()
	gl.AttachShader(handle, vertHandle)
	gl.AttachShader(handle, fragHandle)
	gl.LinkProgram(handle)

	var linked int32
	gl.GetProgramiv(handle, gl.LINK_STATUS, &linked)
	if linked == 0 {
		var logLength int32
		gl.GetProgramiv(handle, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(handle, logLength, nil, gl.Str(log))
		gl.DeleteProgram(handle)
		return 0, fmt.Errorf("link: %s", strings.TrimRight(log, "\x00"))
	}
	return handle, nil
}

// getShaderCompileError returns the compiler log of a failed shader, or ""
// when it compiled.
func getShaderCompileError(shader uint32) string {
	var isCompiled int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &isCompiled)
	if isCompiled != 0 {
		return ""
	}
	var logLength int32
	gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
	if logLength == 0 {
		return "unknown error"
	}
	// logLength includes the NUL
	log := strings.Repeat("\x00", int(logLength+1))
	gl.GetShaderInfoLog(shader, logLength, &logLength, gl.Str(log))
	return strings.TrimRight(log, "\x00")
}
