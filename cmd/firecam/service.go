// Copyright 2020 Dan Julio
// This file is part of firecam.

package main

import (
	"errors"

	"github.com/godbus/dbus"
	"github.com/godbus/dbus/introspect"

	"github.com/danjulio/firecam/orchestrator"
)

const (
	dbusName = "org.cacophony.firecam"
	dbusPath = "/org/cacophony/firecam"
)

// service exposes a small local-machine-only control surface over
// dbus, alongside the network command.Responder: actions a systemd
// unit or a local script can invoke (button-hold shutdown handling,
// a status probe) without opening a TCP connection to itself.
type service struct {
	orch *orchestrator.Orchestrator
	conn *dbus.Conn
}

func startService(orch *orchestrator.Orchestrator) (*service, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}
	reply, err := conn.RequestName(dbusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, err
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return nil, errors.New("name already taken")
	}

	s := &service{orch: orch, conn: conn}
	conn.Export(s, dbusPath, dbusName)
	conn.Export(genIntrospectable(s), dbusPath, "org.freedesktop.DBus.Introspectable")
	return s, nil
}

func (s *service) stop() {
	s.conn.ReleaseName(dbusName)
}

func genIntrospectable(v interface{}) introspect.Introspectable {
	node := &introspect.Node{
		Interfaces: []introspect.Interface{{
			Name:    dbusName,
			Methods: introspect.Methods(v),
		}},
	}
	return introspect.NewIntrospectable(node)
}

// PowerOff begins the shutdown sequence, identically to the network
// power_off command, for a local button-hold handler to invoke.
func (s *service) PowerOff() *dbus.Error {
	s.orch.PowerOff()
	return nil
}

// IsRecording reports whether a recording session is active, for a
// local status LED/indicator script.
func (s *service) IsRecording() (bool, *dbus.Error) {
	return s.orch.Status().Recording, nil
}
