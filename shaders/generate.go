// Package shaders holds the GLSL sources for the renderer's pipeline. The compiled
// SPIR-V is read at startup from the paths in the config.
package shaders

//go:generate glslc shader.vert -o vert.spv
//go:generate glslc shader.frag -o frag.spv
