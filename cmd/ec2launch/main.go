// ec2launch - Launch an EC2 instance and wait for it to leave pending.
// Launch. Wait. Report.
package main

func main() {
	Execute()
}
