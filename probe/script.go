// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package probe

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"github.com/J-x-Z/winpipe/protocol"
	"github.com/J-x-Z/winpipe/transport"
	"github.com/J-x-Z/winpipe/wire"
)

// Script parameterizes Run.
type Script struct {
	// Width and Height size the probe's buffer. Zero selects
	// 256x128.
	Width, Height int

	Title string
	AppID string
}

func (s Script) withDefaults() Script {
	if s.Width <= 0 {
		s.Width = 256
	}
	if s.Height <= 0 {
		s.Height = 128
	}
	if s.Title == "" {
		s.Title = "winpipe-probe"
	}
	if s.AppID == "" {
		s.AppID = "dev.winpipe.probe"
	}
	return s
}

// Global is one wl_registry.global event.
type Global struct {
	Name      uint32
	Interface string
	Version   uint32
}

// Report is the outcome of Run.
type Report struct {
	Hello   transport.Hello
	Globals []Global

	// Surface, Buffer and Configure identify the toplevel, its buffer
	// and the configure serial that was acknowledged.
	Surface   uint32
	Buffer    uint32
	Configure uint32

	// Events counts every event received.
	Events  int
	Records []Record

	// Verified reports that the reconstructed buffer matches the
	// pixels the probe wrote after the last commit.
	Verified bool
}

// Run drives a complete session on client: it binds every global,
// maps an xdg_toplevel, fills a mirrored shm pool with a gradient,
// commits it, then repaints a horizontal band and commits again.
func Run(ctx context.Context, client *Client, script Script) (*Report, error) {
	script = script.withDefaults()
	report := &Report{Hello: client.Hello()}

	roundtrip := func(step string) ([]wire.Message, error) {
		events, err := client.Roundtrip(ctx)
		report.Events += len(events) + 1
		if err != nil {
			return events, fmt.Errorf("%s: %w", step, err)
		}
		return events, nil
	}

	registry := client.Allocate(protocol.Registry)
	if err := client.Send(protocol.DisplayID, protocol.DisplayGetRegistry, wire.NewID(registry)); err != nil {
		return report, err
	}
	events, err := roundtrip("listing globals")
	if err != nil {
		return report, err
	}
	for _, event := range events {
		if event.ObjectID == registry && event.Opcode == protocol.RegistryEventGlobal {
			report.Globals = append(report.Globals, Global{
				Name:      event.Args[0].Value,
				Interface: event.Args[1].Text,
				Version:   event.Args[2].Value,
			})
		}
	}

	bound := make(map[*protocol.Interface]uint32)
	for _, global := range report.Globals {
		iface, ok := protocol.ByName(global.Interface)
		if !ok {
			continue
		}
		version := min(global.Version, iface.Version)
		id := client.Allocate(iface)
		if err := client.Send(registry, protocol.RegistryBind,
			wire.Uint(global.Name), wire.String(iface.Name), wire.Uint(version), wire.NewID(id)); err != nil {
			return report, err
		}
		bound[iface] = id
	}
	for _, iface := range []*protocol.Interface{protocol.Compositor, protocol.Shm, protocol.WmBase} {
		if bound[iface] == 0 {
			return report, fmt.Errorf("server does not advertise %s", iface.Name)
		}
	}
	if _, err := roundtrip("binding globals"); err != nil {
		return report, err
	}

	surface := client.Allocate(protocol.Surface)
	xdgSurface := client.Allocate(protocol.XdgSurface)
	toplevel := client.Allocate(protocol.Toplevel)
	report.Surface = surface
	requests := []struct {
		object uint32
		opcode uint16
		args   []wire.Argument
	}{
		{bound[protocol.Compositor], protocol.CompositorCreateSurface, []wire.Argument{wire.NewID(surface)}},
		{bound[protocol.WmBase], protocol.WmBaseGetXdgSurface, []wire.Argument{wire.NewID(xdgSurface), wire.Object(surface)}},
		{xdgSurface, protocol.XdgSurfaceGetToplevel, []wire.Argument{wire.NewID(toplevel)}},
		{toplevel, protocol.ToplevelSetTitle, []wire.Argument{wire.String(script.Title)}},
		{toplevel, protocol.ToplevelSetAppID, []wire.Argument{wire.String(script.AppID)}},
		{surface, protocol.SurfaceCommit, nil},
	}
	for _, request := range requests {
		if err := client.Send(request.object, request.opcode, request.args...); err != nil {
			return report, err
		}
	}
	events, err = roundtrip("mapping the toplevel")
	if err != nil {
		return report, err
	}
	for _, event := range events {
		if event.ObjectID == xdgSurface && event.Opcode == protocol.XdgSurfaceEventConfigure {
			report.Configure = event.Args[0].Value
		}
	}
	if report.Configure == 0 {
		return report, fmt.Errorf("mapping the toplevel: no xdg_surface.configure")
	}
	if err := client.Send(xdgSurface, protocol.XdgSurfaceAckConfigure, wire.Uint(report.Configure)); err != nil {
		return report, err
	}

	stride := script.Width * 4
	pixels := Gradient(script.Width, script.Height)
	pool := client.Allocate(protocol.ShmPool)
	buffer := client.Allocate(protocol.Buffer)
	report.Buffer = buffer
	if err := client.Send(bound[protocol.Shm], protocol.ShmCreatePool,
		wire.NewID(pool), wire.FD(), wire.Int(int32(len(pixels)))); err != nil {
		return report, err
	}
	if err := client.WritePool(pool, 0, pixels); err != nil {
		return report, err
	}
	if err := client.Send(pool, protocol.ShmPoolCreateBuffer, wire.NewID(buffer),
		wire.Int(0), wire.Int(int32(script.Width)), wire.Int(int32(script.Height)),
		wire.Int(int32(stride)), wire.Uint(protocol.ShmFormatXRGB8888)); err != nil {
		return report, err
	}
	if err := commitBuffer(client, surface, buffer, 0, script.Height); err != nil {
		return report, err
	}
	if _, err := roundtrip("first commit"); err != nil {
		return report, err
	}

	top, height := script.Height/4, max(script.Height/8, 1)
	band := Band(pixels, stride, top, height, 0xFFFFFFFF)
	if err := client.WritePool(pool, uint32(top*stride), band); err != nil {
		return report, err
	}
	if err := commitBuffer(client, surface, buffer, top, height); err != nil {
		return report, err
	}
	if _, err := roundtrip("second commit"); err != nil {
		return report, err
	}

	report.Records = client.Records()
	if replica, ok := client.Replica(buffer); ok {
		report.Verified = bytes.Equal(replica.Pixels(), pixels)
	}
	return report, nil
}

// commitBuffer attaches buffer, damages rows [top, top+height) and
// commits.
func commitBuffer(client *Client, surface, buffer uint32, top, height int) error {
	if err := client.Send(surface, protocol.SurfaceAttach, wire.Object(buffer), wire.Int(0), wire.Int(0)); err != nil {
		return err
	}
	if err := client.Send(surface, protocol.SurfaceDamageBuffer,
		wire.Int(0), wire.Int(int32(top)), wire.Int(1<<30), wire.Int(int32(height))); err != nil {
		return err
	}
	return client.Send(surface, protocol.SurfaceCommit)
}

// Gradient returns XRGB8888 pixels fading red across and green down.
func Gradient(width, height int) []byte {
	pixels := make([]byte, width*height*4)
	for y := range height {
		for x := range width {
			red := uint32(x * 255 / max(width-1, 1))
			green := uint32(y * 255 / max(height-1, 1))
			binary.LittleEndian.PutUint32(pixels[(y*width+x)*4:], 0xFF000000|red<<16|green<<8|0x80)
		}
	}
	return pixels
}

// Band fills rows [top, top+height) of pixels with one value and
// returns those rows.
func Band(pixels []byte, stride, top, height int, pixel uint32) []byte {
	rows := pixels[top*stride : (top+height)*stride]
	for i := 0; i < len(rows); i += 4 {
		binary.LittleEndian.PutUint32(rows[i:], pixel)
	}
	return rows
}
