/* {{{ Copyright (C) 2022 Ali Mosajjal
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>. }}} */

package capture

import (
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/mosajjal/gopcap/pcap"
)

// Open validates o, opens the session it describes and installs the filter.
// Nothing stays open when an error is returned.
func (o Options) Open() (*pcap.Session, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}

	var s *pcap.Session
	var err error
	switch {
	case o.PcapFile != "":
		s, err = pcap.OpenOffline(o.PcapFile)
	case o.ImmediateMode:
		s, err = o.activate()
	default:
		s, err = pcap.OpenLive(o.DevName, o.SnapLength, !o.NoPromiscuous, o.ReadTimeout)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", o.source())
	}
	log.Infof("Opened: %s", o.source())

	if o.Filter != "" {
		if err := o.setFilter(s); err != nil {
			s.Close()
			return nil, err
		}
		log.Infof("Filter: %s", o.Filter)
	}
	return s, nil
}

func (o Options) setFilter(s *pcap.Session) error {
	p, err := s.CompileFilter(o.Filter, !o.NoOptimize, pcap.NetmaskUnknown)
	if err != nil {
		return errors.Wrapf(err, "failed to compile filter %q", o.Filter)
	}
	defer p.Close()
	return errors.Wrapf(s.SetFilter(p), "failed to set filter %q", o.Filter)
}

// inactiveSession is the part of pcap.InactiveSession used by activate.
type inactiveSession interface {
	SetSnapLength(n int) error
	SetPromiscuous(promisc bool) error
	SetTimeout(timeout time.Duration) error
	SetImmediateMode(immediate bool) error
	Activate() (*pcap.Session, error)
	CleanUp()
}

var newInactive = func(device string) (inactiveSession, error) {
	p, err := pcap.NewInactive(device)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (o Options) activate() (*pcap.Session, error) {
	inactive, err := newInactive(o.DevName)
	if err != nil {
		return nil, err
	}
	for _, set := range []func() error{
		func() error { return inactive.SetSnapLength(o.SnapLength) },
		func() error { return inactive.SetPromiscuous(!o.NoPromiscuous) },
		func() error { return inactive.SetTimeout(o.ReadTimeout) },
		func() error { return inactive.SetImmediateMode(true) },
	} {
		if err := set(); err != nil {
			inactive.CleanUp()
			return nil, err
		}
	}
	log.Infof("Promiscuous mode: %v", !o.NoPromiscuous)
	return inactive.Activate()
}

// vim: foldmethod=marker
