// Package device is the minimal device layer on top of the protocol
// engine: the PLM modem plus switch and dimmer personalities composed
// from the OnOff and Level capabilities. Devices consume the engine's
// send and read-handler contracts only; topic mapping and richer
// personalities live outside the engine.
package device
