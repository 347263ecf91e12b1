// Copyright (c) 2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package txrules provides the fee, dust and change rules used when paying out
of a multi-signature address.

Fee and Change

Komodo transactions spending from the pooled address pay a fixed fee rather
than a size based one.  Inputs older than the minimum age accrue interest
which the spender may claim, so the change returned to the source address is

    change = selected - amount + interest - fee

A change output is only added when the change exceeds the dust threshold;
anything at or below it is left to the miners.
*/
package txrules
