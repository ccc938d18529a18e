// Package testutil provides canned DNOS CLI output and a scripted fake
// device shell for package tests.
package testutil

// ShowBridgeDomainsB14 is "show network-services bridge-domain | no-more"
// from DNAAS-LEAF-B14.
const ShowBridgeDomainsB14 = `
Bridge Domain: g_visaev_v253_Spirent
  Admin State: enabled
  Interfaces:
    ge100-0/0/29.253
    ge100-0/0/30.253

Bridge Domain: g_visaev_v251
  Admin State: enabled
  Interfaces:
    ge100-0/0/29.251
`

// ShowBridgeDomainsB15 is the listing from DNAAS-LEAF-B15.
const ShowBridgeDomainsB15 = `
Bridge Domain: g_visaev_v253_to_Spirent
  Admin State: enabled
  Interfaces:
    ge100-0/0/1.253
`

// ShowBridgeDomainsB16 is the listing from DNAAS-LEAF-B16; the name uses
// the bare <user>_<vlan> convention.
const ShowBridgeDomainsB16 = `
Bridge Domain: visaev_253_test
  Admin State: enabled
  Interfaces:
    ge100-0/0/7.253
`

// ShowInterfacesB14 is "show interfaces | no-more" from DNAAS-LEAF-B14.
const ShowInterfacesB14 = `
| Interface             | Admin   | Operational | Speed | VLAN | MTU  |
+-----------------------+---------+-------------+-------+------+------+
| ge100-0/0/29          | enabled | up          | 100G  |      | 9100 |
| ge100-0/0/29.251 (L2) | enabled | up          |       | 251  | 9100 |
| ge100-0/0/29.253 (L2) | enabled | up          |       | 253  | 9100 |
| ge100-0/0/30          | enabled | up          | 100G  |      | 9100 |
| ge100-0/0/30.253 (L2) | enabled | up          |       | 253  | 9100 |
| mgmt0                 | enabled | up          | 1G    |      | 1500 |
`

// ShowConfigB14 is "show config | fl" from DNAAS-LEAF-B14, filtered to the
// statements the parser understands plus surrounding noise.
const ShowConfigB14 = `
system hostname DNAAS-LEAF-B14
network-services bridge-domain instance g_visaev_v253_Spirent admin-state enabled
network-services bridge-domain instance g_visaev_v253_Spirent interface ge100-0/0/29.253
network-services bridge-domain instance g_visaev_v253_Spirent interface ge100-0/0/30.253
network-services bridge-domain instance g_visaev_v251 admin-state enabled
network-services bridge-domain instance g_visaev_v251 interface ge100-0/0/29.251
interfaces ge100-0/0/29.251 vlan-id 251
interfaces ge100-0/0/29.251 l2-service enabled
interfaces ge100-0/0/29.253 vlan-id 253
interfaces ge100-0/0/29.253 l2-service enabled
interfaces ge100-0/0/30.253 vlan-id 253
interfaces ge100-0/0/30.253 l2-service enabled
`
