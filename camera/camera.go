// Package camera compiles camera blocks of a scene into keyframed
// trajectories and samples them over time.
//
//	camera {
//		marker(origin, 5, 5, 5);
//		keyframe(0) { pos(0, 0, -5); look_at(0, 0, 0); }
//		keyframe(2, +) { pos($origin, 1, 0, 0); }
//	}
//
// Keyframe times are absolute unless followed by +, in which case they are
// relative to the previous keyframe.
package camera

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glgl/math/ms1"
	"github.com/soypat/sdfwalk/scenelang"
)

const epstol = 6e-7

var (
	ErrUnknownStatement = errors.New("unknown statement")
	ErrUnknownArgument  = errors.New("unknown argument")
	ErrDuplicate        = errors.New("duplicate")
	ErrNumber           = errors.New("invalid number")
	ErrArity            = errors.New("wrong number of arguments")
	ErrUnknownUnit      = errors.New("unknown angle unit")
	ErrUnknownMarker    = errors.New("unknown marker")
	ErrTimeline         = errors.New("keyframe time goes backwards")
	ErrDuplicateCamera  = errors.New("more than one camera block")
)

// Error is returned for malformed camera blocks.
type Error struct {
	Statement string
	Err       error
}

func (e *Error) Error() string { return "camera: " + e.Statement + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Desc is a compiled camera trajectory. It is not modified after [New] returns.
type Desc struct {
	// Timeline is sorted by non-decreasing T.
	Timeline []Keyframe
	Markers  map[string]ms3.Vec
}

// New compiles a camera statement.
func New(stmt scenelang.Statement) (*Desc, error) {
	if len(stmt.Args) != 0 {
		return nil, &Error{Statement: stmt.Name, Err: fmt.Errorf("%w: want 0, got %d", ErrArity, len(stmt.Args))}
	}
	desc := &Desc{Markers: make(map[string]ms3.Vec)}
	// Markers first so keyframes can refer to markers declared after them.
	for _, child := range stmt.Body {
		if child.Name != "marker" {
			continue
		}
		if err := desc.addMarker(child); err != nil {
			return nil, &Error{Statement: child.String(), Err: err}
		}
	}
	var prevT float32
	for _, child := range stmt.Body {
		switch child.Name {
		case "marker":
			continue
		case "keyframe":
			kf, err := desc.parseKeyframe(child, prevT)
			if err != nil {
				return nil, err
			}
			if len(desc.Timeline) > 0 && kf.T < prevT {
				return nil, &Error{Statement: child.Name, Err: fmt.Errorf("%w: %g after %g", ErrTimeline, kf.T, prevT)}
			}
			prevT = kf.T
			desc.Timeline = append(desc.Timeline, kf)
		default:
			return nil, &Error{Statement: child.Name, Err: unknownStatement(child.Name, "keyframe", "marker")}
		}
	}
	return desc, nil
}

// Duration returns the time of the last keyframe, or zero for an empty timeline.
func (d *Desc) Duration() float32 {
	if len(d.Timeline) == 0 {
		return 0
	}
	return d.Timeline[len(d.Timeline)-1].T
}

// TransformAt samples the camera position and orientation at time t. Before the
// first keyframe the first keyframe is used and after the last one the final
// values are held. In between, position is interpolated linearly and
// orientation with [ms3.QuatNlerp], each only if the later keyframe overrides it.
// Look-at rotations are resolved against the position sampled at t.
func (d *Desc) TransformAt(t float32) (ms3.Vec, Quat) {
	tl := d.Timeline
	if len(tl) == 0 {
		return ms3.Vec{}, IdentityQuat()
	}
	idx := sort.Search(len(tl), func(i int) bool { return tl[i].T >= t })
	if idx == 0 {
		pos := d.posAt(0)
		return pos, d.rotAt(0).ToQuat(pos)
	} else if idx >= len(tl) {
		pos := d.posAt(len(tl) - 1)
		return pos, d.rotAt(len(tl) - 1).ToQuat(pos)
	}
	kf1, kf2 := tl[idx-1], tl[idx]
	var a float32 = 1
	if dt := kf2.T - kf1.T; dt > 0 {
		a = ms1.Clamp((t-kf1.T)/dt, 0, 1)
	}
	pos := d.posAt(idx - 1)
	if p2, ok := kf2.Pos.Get(); ok {
		pos = ms3.InterpElem(pos, p2, ms3.Vec{X: a, Y: a, Z: a})
	}
	rot := d.rotAt(idx - 1).ToQuat(pos)
	if r2, ok := kf2.Rot.Get(); ok {
		rot = ms3.QuatNlerp(rot, r2.ToQuat(pos), a)
	}
	return pos, rot
}

// posAt returns the position in effect at keyframe i, walking back through Reuse fields.
func (d *Desc) posAt(i int) ms3.Vec {
	for ; i >= 0; i-- {
		if v, ok := d.Timeline[i].Pos.Get(); ok {
			return v
		}
	}
	return ms3.Vec{}
}

// rotAt returns the rotation in effect at keyframe i, walking back through Reuse fields.
func (d *Desc) rotAt(i int) Rotation {
	for ; i >= 0; i-- {
		if v, ok := d.Timeline[i].Rot.Get(); ok {
			return v
		}
	}
	return defaultRotation()
}

func (d *Desc) addMarker(stmt scenelang.Statement) error {
	if len(stmt.Args) != 4 {
		return fmt.Errorf("%w: marker(name, x, y, z) got %d arguments", ErrArity, len(stmt.Args))
	} else if len(stmt.Body) != 0 {
		return fmt.Errorf("%w: marker has a body", ErrUnknownArgument)
	}
	name := stmt.Args[0]
	if _, dup := d.Markers[name]; dup {
		return fmt.Errorf("%w marker %q", ErrDuplicate, name)
	}
	v, err := parseVec(stmt.Args[1:])
	if err != nil {
		return err
	}
	d.Markers[name] = v
	return nil
}

func (d *Desc) parseKeyframe(stmt scenelang.Statement, prevT float32) (kf Keyframe, err error) {
	wrap := func(err error) error { return &Error{Statement: stmt.String(), Err: err} }
	if len(stmt.Args) < 1 || len(stmt.Args) > 2 {
		return kf, wrap(fmt.Errorf("%w: keyframe(t[, +]) got %d arguments", ErrArity, len(stmt.Args)))
	}
	kf.T, err = parseFloat(stmt.Args[0])
	if err != nil {
		return kf, wrap(err)
	}
	if len(stmt.Args) == 2 {
		if stmt.Args[1] != "+" {
			return kf, wrap(fmt.Errorf("%w %q, want +", ErrUnknownArgument, stmt.Args[1]))
		}
		kf.T += prevT
	}
	for _, field := range stmt.Body {
		if err := d.parseField(&kf, field); err != nil {
			return kf, &Error{Statement: stmt.Name + " > " + field.Name, Err: err}
		}
	}
	if kf.Marker == "" {
		return kf, nil
	}
	// The keyframe marker anchors both the position and a look_at target.
	anchor := d.Markers[kf.Marker]
	if pos, ok := kf.Pos.Get(); ok {
		kf.Pos = Override(ms3.Add(anchor, pos))
	}
	if rot, ok := kf.Rot.Get(); ok && rot.Kind == RotationLookAt {
		kf.Rot = Override(LookAt(ms3.Add(anchor, rot.Target)))
	}
	return kf, nil
}

func (d *Desc) parseField(kf *Keyframe, field scenelang.Statement) (err error) {
	if len(field.Body) != 0 {
		return fmt.Errorf("%w: %s has a body", ErrUnknownArgument, field.Name)
	}
	field.Args, err = d.stripMarker(kf, field.Args)
	if err != nil {
		return err
	}
	switch field.Name {
	case "pos", "look_at":
		v, err := parseVec(field.Args)
		if err != nil {
			return err
		}
		if field.Name == "pos" {
			if kf.Pos.IsOverride() {
				return fmt.Errorf("%w position", ErrDuplicate)
			}
			kf.Pos = Override(v)
			return nil
		}
		return setRotation(kf, LookAt(v))

	case "euler":
		if len(field.Args) != 3 && len(field.Args) != 4 {
			return fmt.Errorf("%w: euler(pitch, yaw, roll[, unit]) got %d arguments", ErrArity, len(field.Args))
		}
		angles, err := parseVec(field.Args[:3])
		if err != nil {
			return err
		}
		scale := float32(math32.Pi / 180)
		if len(field.Args) == 4 {
			switch field.Args[3] {
			case "degrees", "deg":
			case "radians", "rad":
				scale = 1
			default:
				return fmt.Errorf("%w %q", ErrUnknownUnit, field.Args[3])
			}
		}
		return setRotation(kf, Absolute(EulerQuat(angles.X*scale, angles.Y*scale, angles.Z*scale)))

	case "quat", "quaternion":
		if len(field.Args) != 4 {
			return fmt.Errorf("%w: quat(w, x, y, z) got %d arguments", ErrArity, len(field.Args))
		}
		var c [4]float32
		for i, arg := range field.Args {
			v, err := parseFloat(arg)
			if err != nil {
				return err
			}
			c[i] = v
		}
		return setRotation(kf, Absolute(Quat{W: c[0], I: c[1], J: c[2], K: c[3]}.Unit()))
	}
	return unknownStatement(field.Name, "pos", "look_at", "euler", "quat", "quaternion")
}

// stripMarker removes a leading $marker argument and records it as the keyframe marker.
func (d *Desc) stripMarker(kf *Keyframe, args []string) ([]string, error) {
	if len(args) == 0 || !strings.HasPrefix(args[0], "$") {
		return args, nil
	}
	marker := args[0][1:]
	if _, ok := d.Markers[marker]; !ok {
		return args, fmt.Errorf("%w %q", ErrUnknownMarker, marker)
	}
	if kf.Marker != "" && kf.Marker != marker {
		return args, fmt.Errorf("%w marker in keyframe: %q and %q", ErrDuplicate, kf.Marker, marker)
	}
	kf.Marker = marker
	return args[1:], nil
}

func setRotation(kf *Keyframe, rot Rotation) error {
	if kf.Rot.IsOverride() {
		return fmt.Errorf("%w rotation", ErrDuplicate)
	}
	kf.Rot = Override(rot)
	return nil
}

func parseVec(args []string) (v ms3.Vec, err error) {
	if len(args) != 3 {
		return v, fmt.Errorf("%w: want 3 coordinates, got %d", ErrArity, len(args))
	}
	if v.X, err = parseFloat(args[0]); err != nil {
		return v, err
	}
	if v.Y, err = parseFloat(args[1]); err != nil {
		return v, err
	}
	v.Z, err = parseFloat(args[2])
	return v, err
}

func parseFloat(s string) (float32, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %w", ErrNumber, s, err)
	}
	return float32(f), nil
}

func unknownStatement(name string, known ...string) error {
	ranks := fuzzy.RankFindFold(name, known)
	if len(ranks) == 0 {
		return fmt.Errorf("%w %q, want one of %s", ErrUnknownStatement, name, strings.Join(known, ", "))
	}
	sort.Sort(ranks)
	return fmt.Errorf("%w %q, did you mean %q?", ErrUnknownStatement, name, ranks[0].Target)
}
