/*
Package ddns keeps Cloudflare address records pointed at the host's public IP.

Usage will always start with [ddns.New],
which takes the host/zone bindings to manage and options selecting a [Provider]
(normally [UsingCloudflare]), how addresses are discovered, and which record types are active.

Each call to [Client.RunCycle] discovers the public address once per family,
resolves every zone, and creates or updates the A and AAAA records that differ.
[Client.Run] repeats cycles on an interval.

The building blocks are usable on their own: [Discover], [ResolveZone] and [Reconcile].
*/
package ddns
